package messaging

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/retry"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/tracing"
)

// MessageHandler settles one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg retry.Message, ack retry.Acknowledger) domain.Disposition
}

// RabbitMQConsumer consumes payment-initiation messages from RabbitMQ
type RabbitMQConsumer struct {
	log     *slog.Logger
	channel *amqp.Channel
	queue   string
	handler MessageHandler
}

// NewRabbitMQConsumer creates a consumer on the broker's intake queue
func NewRabbitMQConsumer(log *slog.Logger, broker *Broker, handler MessageHandler) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		log:     log,
		channel: broker.Channel(),
		queue:   broker.Config().Queue,
		handler: handler,
	}
}

// Start consumes messages one at a time until ctx is cancelled or the
// delivery channel closes.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.ConsumeWithContext(ctx,
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (we'll ack manually)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("RabbitMQ consumer started, waiting for messages", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("context cancelled, stopping RabbitMQ consumer")
			return nil

		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	ctx, span := tracing.StartConsume(ctx, c.queue, d.Headers)
	defer span.End()

	retryCount, err := RetryCount(d.Headers)
	if err != nil {
		c.log.Warn("ignoring malformed retry-count header", "err", err)
	}

	disposition := c.handler.Handle(ctx, retry.Message{
		Body:       d.Body,
		RetryCount: retryCount,
		Headers:    headerMap(d.Headers),
	}, deliveryAcker{d: d})

	span.SetAttributes(
		attribute.String("payment.disposition", string(disposition)),
		attribute.Int("payment.retry_count", retryCount),
	)
}

// deliveryAcker settles an amqp.Delivery.
type deliveryAcker struct {
	d amqp.Delivery
}

func (a deliveryAcker) Ack() error {
	return a.d.Ack(false)
}

func (a deliveryAcker) Requeue() error {
	return a.d.Nack(false, true)
}
