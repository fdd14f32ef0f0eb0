package bus

import (
	"context"
	"fmt"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/memory"
	"github.com/kbirk/protonats/pkg/rpc/nats"
	"github.com/kbirk/protonats/pkg/rpc/rabbitmq"
	"github.com/kbirk/protonats/pkg/rpc/wsbus"
)

// Conn is an opened bus that must be closed by its owner.
type Conn interface {
	rpc.Bus
	Close() error
}

// Open connects to the transport named by conf. The memory transport is
// private to the returned value and only useful within one process.
func Open(ctx context.Context, conf Config) (Conn, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	switch conf.Transport {
	case TransportNATS:
		b, err := nats.Connect(nats.Config{
			URL:  conf.URL,
			Name: conf.Name,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case TransportRabbitMQ:
		b, err := rabbitmq.Connect(rabbitmq.Config{
			URL:      conf.URL,
			Exchange: conf.Exchange,
			Name:     conf.Name,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case TransportWebsocket:
		b, err := wsbus.Dial(ctx, wsbus.Config{URL: conf.URL})
		if err != nil {
			return nil, err
		}
		return b, nil
	case TransportMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", conf.Transport)
	}
}

// Disconnected reports whether conn has lost its broker. Transports that do
// not signal a lost connection report false.
func Disconnected(conn Conn) bool {
	d, ok := conn.(interface{ Done() <-chan struct{} })
	if !ok {
		return false
	}
	select {
	case <-d.Done():
		return true
	default:
		return false
	}
}
