package rpc

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects prometheus metrics for dispatched messages, client calls
// and dispatcher diagnostics.
type Metrics struct {
	messagesTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

func newCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "protonats"
	}

	m := &Metrics{
		messagesTotal: newCounterVec(namespace, "messages_total",
			"Messages handled per method and side.",
			[]string{"side", "service", "method", "kind"}),
		failuresTotal: newCounterVec(namespace, "failures_total",
			"Failed messages per method, side and error kind.",
			[]string{"side", "service", "method", "error"}),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "duration_seconds",
				Help:      "Time spent handling a message or completing a call.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"side", "service", "method"},
		),
		errorsTotal: newCounterVec(namespace, "errors_total",
			"Errors reported through an error handler, per error kind.",
			[]string{"error"}),
	}

	for _, c := range []prometheus.Collector{m.messagesTotal, m.failuresTotal, m.durationSeconds, m.errorsTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ServerMiddleware instruments dispatched messages.
func (m *Metrics) ServerMiddleware() Middleware {
	return m.middleware("server")
}

// ClientMiddleware instruments outgoing calls, notifications and stream
// opens.
func (m *Metrics) ClientMiddleware() Middleware {
	return m.middleware("client")
}

func (m *Metrics) middleware(side string) Middleware {
	return func(ctx context.Context, desc MethodDesc, msg *Msg, next Handler) (*Msg, error) {
		start := time.Now()
		reply, err := next(ctx, desc, msg)

		m.messagesTotal.WithLabelValues(side, desc.Service, desc.Method, desc.Kind.String()).Inc()
		m.durationSeconds.WithLabelValues(side, desc.Service, desc.Method).Observe(time.Since(start).Seconds())
		if err != nil && KindOf(err) != UnaddressableReply {
			m.failuresTotal.WithLabelValues(side, desc.Service, desc.Method, errorLabel(err)).Inc()
		}
		return reply, err
	}
}

// Report counts err by kind. It is meant to be used as, or called from, an
// ErrHandler so diagnostics raised outside a method (unroutable subjects)
// are counted too.
func (m *Metrics) Report(err error) {
	if err == nil {
		return
	}
	m.errorsTotal.WithLabelValues(errorLabel(err)).Inc()
}

func errorLabel(err error) string {
	if kind := KindOf(err); kind != 0 {
		return kind.String()
	}
	return "other"
}
