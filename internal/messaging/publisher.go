package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/tracing"
)

var (
	// ErrNotConfirmed is returned when the channel is not in confirm mode.
	ErrNotConfirmed = errors.New("publish channel is not in confirm mode")
	// ErrPublishNacked is returned when the broker refuses a publishing.
	ErrPublishNacked = errors.New("broker did not acknowledge publishing")
)

// confirmation is the pending broker confirm of one publishing.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channelPublisher publishes through the default exchange and returns the
// pending confirm, or nil when the channel is not in confirm mode.
type channelPublisher interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
}

type amqpChannel struct {
	ch *amqp.Channel
}

func (a amqpChannel) publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := a.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, nil
	}
	return dc, nil
}

// RabbitMQPublisher sends persistent JSON messages through the default
// exchange straight to a named queue. A publish succeeds only once the broker
// has confirmed it, so ch must be in confirm mode.
type RabbitMQPublisher struct {
	ch              channelPublisher
	queue           string
	deadLetterQueue string
}

// NewRabbitMQPublisher publishes on ch, which the caller has put into confirm
// mode with ch.Confirm(false).
func NewRabbitMQPublisher(ch *amqp.Channel, queue, deadLetterQueue string) *RabbitMQPublisher {
	return newPublisher(amqpChannel{ch: ch}, queue, deadLetterQueue)
}

func newPublisher(ch channelPublisher, queue, deadLetterQueue string) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		ch:              ch,
		queue:           queue,
		deadLetterQueue: deadLetterQueue,
	}
}

// Republish sends body back to the intake queue with the retry-count header.
func (p *RabbitMQPublisher) Republish(ctx context.Context, body []byte, retryCount int) error {
	if err := p.PublishTo(ctx, p.queue, body, retryHeaders(retryCount)); err != nil {
		return fmt.Errorf("republish with retry-count %d: %w", retryCount, err)
	}
	return nil
}

// DeadLetter sends the unmodified body to the dead-letter queue.
func (p *RabbitMQPublisher) DeadLetter(ctx context.Context, body []byte) error {
	if err := p.PublishTo(ctx, p.deadLetterQueue, body, nil); err != nil {
		return fmt.Errorf("dead-letter: %w", err)
	}
	return nil
}

// PublishTo sends body to queue with headers plus the trace context of ctx
// and waits for the broker confirm.
func (p *RabbitMQPublisher) PublishTo(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	conf, err := p.ch.publish(ctx, queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      tracing.Inject(ctx, headers),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	if conf == nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, ErrNotConfirmed)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm publish to %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("failed to publish to %s: %w", queue, ErrPublishNacked)
	}
	return nil
}
