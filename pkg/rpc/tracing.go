package rpc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kbirk/protonats/pkg/rpc"

// TracingMiddleware wraps every message in a span named after the method.
// A nil provider uses the global tracer provider.
func TracingMiddleware(provider trace.TracerProvider) Middleware {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(tracerName)

	return func(ctx context.Context, desc MethodDesc, msg *Msg, next Handler) (*Msg, error) {
		ctx, span := tracer.Start(ctx, desc.FullName())
		defer span.End()

		span.SetAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject),
			attribute.String("rpc.service", desc.Service),
			attribute.String("rpc.method", desc.Method),
			attribute.String("rpc.kind", desc.Kind.String()),
			attribute.Int("messaging.message.body.size", len(msg.Data)),
		)

		reply, err := next(ctx, desc, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return reply, err
	}
}
