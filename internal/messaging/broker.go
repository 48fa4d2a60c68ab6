package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
)

// Broker owns the RabbitMQ connection, the consuming channel and a separate
// publishing channel.
type Broker struct {
	log            *slog.Logger
	conn           *amqp.Connection
	channel        *amqp.Channel
	publishChannel *amqp.Channel
	config         config.RabbitMQConfig
}

// NewBroker connects, declares the intake and dead-letter queues as durable
// and limits unacknowledged deliveries to one.
func NewBroker(log *slog.Logger, cfg config.RabbitMQConfig) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, queue := range []string{cfg.Queue, cfg.DeadLetterQueue} {
		if err := DeclareQueue(channel, queue); err != nil {
			channel.Close()
			conn.Close()
			return nil, err
		}
	}

	// One message in flight per worker
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	publishChannel, err := conn.Channel()
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	// Republish and dead-letter are acked only after the broker confirms them
	if err := publishChannel.Confirm(false); err != nil {
		publishChannel.Close()
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("RabbitMQ broker initialized",
		"queue", cfg.Queue, "dead_letter_queue", cfg.DeadLetterQueue)

	return &Broker{
		log:            log,
		conn:           conn,
		channel:        channel,
		publishChannel: publishChannel,
		config:         cfg,
	}, nil
}

// DeclareQueue declares a durable, non-exclusive queue.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Channel returns the consuming channel.
func (b *Broker) Channel() *amqp.Channel {
	return b.channel
}

// PublishChannel returns the confirm-mode channel used for republish and
// dead-letter.
func (b *Broker) PublishChannel() *amqp.Channel {
	return b.publishChannel
}

// Config returns the broker configuration.
func (b *Broker) Config() config.RabbitMQConfig {
	return b.config
}

// Ping reports whether the connection and channel are still open.
func (b *Broker) Ping(context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	if b.channel == nil || b.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes both channels and the connection.
func (b *Broker) Close() error {
	for _, ch := range []*amqp.Channel{b.channel, b.publishChannel} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			b.log.Warn("error closing channel", "err", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn.Close()
	}
	return nil
}
