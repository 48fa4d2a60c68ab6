// Package tracing carries OpenTelemetry trace context across RabbitMQ hops.
package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/messaging"

// HeaderCarrier adapts amqp.Table to propagation.TextMapCarrier.
type HeaderCarrier amqp.Table

func (c HeaderCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c HeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Propagator returns the W3C trace-context propagator used on the wire.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// Inject writes the span context of ctx into headers, allocating the table if needed.
func Inject(ctx context.Context, headers amqp.Table) amqp.Table {
	if headers == nil {
		headers = amqp.Table{}
	}
	Propagator().Inject(ctx, HeaderCarrier(headers))
	return headers
}

// Extract returns ctx enriched with the remote span context found in headers.
func Extract(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return Propagator().Extract(ctx, HeaderCarrier(headers))
}

// StartConsume starts a consumer span for a delivery from queue. The span
// records only when a TracerProvider is registered with otel; otherwise it
// just carries the upstream trace context.
func StartConsume(ctx context.Context, queue string, headers amqp.Table) (context.Context, trace.Span) {
	ctx = Extract(ctx, headers)
	return otel.Tracer(tracerName).Start(ctx, queue+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", queue),
		),
	)
}
