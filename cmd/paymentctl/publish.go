package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/messaging"
)

type publishOptions struct {
	amount    string
	currency  string
	userID    string
	key       string
	transient bool
	permanent bool
	count     int
}

func publishCmd(cfg *config.Config) *cobra.Command {
	opts := publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish test payment events to the intake queue",
		Long: `Publish one or more payment events.

Without --key every event gets a fresh UUID. With --key the same event is
published --count times, which exercises idempotent replay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return withChannel(cfg, func(ch *amqp.Channel) error {
				publisher := messaging.NewRabbitMQPublisher(ch, cfg.RabbitMQ.Queue, cfg.RabbitMQ.DeadLetterQueue)
				ctx := cmd.Context()
				for i := 0; i < opts.count; i++ {
					event, err := buildEvent(opts, time.Now().UTC())
					if err != nil {
						return err
					}
					if err := publishEvent(ctx, publisher, cfg.RabbitMQ.Queue, event); err != nil {
						return err
					}
					fmt.Printf(" [x] Sent payment %s for %s %s | transient=%t | permanent=%t\n",
						event.IdempotencyKey, event.Amount.StringFixed(2), event.Currency, opts.transient, opts.permanent)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.amount, "amount", "50.00", "Payment amount")
	cmd.Flags().StringVar(&opts.currency, "currency", "USD", "ISO currency code")
	cmd.Flags().StringVar(&opts.userID, "user", "user-alpha", "Paying user ID")
	cmd.Flags().StringVar(&opts.key, "key", "", "Idempotency key (default: random UUID per event)")
	cmd.Flags().BoolVar(&opts.transient, "transient", false, "Force a transient gateway failure")
	cmd.Flags().BoolVar(&opts.permanent, "permanent", false, "Force a permanent gateway failure")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 1, "Number of events to publish")

	return cmd
}

func buildEvent(opts publishOptions, now time.Time) (*domain.PaymentEvent, error) {
	amount, err := decimal.NewFromString(opts.amount)
	if err != nil {
		return nil, fmt.Errorf("invalid --amount %q: %w", opts.amount, err)
	}

	key := opts.key
	if key == "" {
		key = uuid.NewString()
	}

	return &domain.PaymentEvent{
		IdempotencyKey: key,
		Amount:         amount,
		Currency:       opts.currency,
		UserID:         opts.userID,
		Timestamp:      now.Format(time.RFC3339),
		Metadata: map[string]any{
			"source_system":                  "paymentctl",
			domain.MetadataSimulateTransient: opts.transient,
			domain.MetadataSimulatePermanent: opts.permanent,
		},
	}, nil
}

func publishEvent(ctx context.Context, publisher *messaging.RabbitMQPublisher, queue string, event *domain.PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return publisher.PublishTo(ctx, queue, body, nil)
}

// withChannel dials RabbitMQ, declares both queues and runs fn on a fresh
// confirm-mode channel.
func withChannel(cfg *config.Config, fn func(ch *amqp.Channel) error) error {
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	for _, queue := range []string{cfg.RabbitMQ.Queue, cfg.RabbitMQ.DeadLetterQueue} {
		if err := messaging.DeclareQueue(ch, queue); err != nil {
			return err
		}
	}

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return fn(ch)
}
