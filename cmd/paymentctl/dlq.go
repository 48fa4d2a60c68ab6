package main

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/messaging"
)

func dlqCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay the dead-letter queue",
	}

	cmd.AddCommand(dlqListCmd(cfg))
	cmd.AddCommand(dlqReplayCmd(cfg))

	return cmd
}

func dlqListCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print dead-lettered messages without removing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChannel(cfg, func(ch *amqp.Channel) error {
				held, err := drain(ch, cfg.RabbitMQ.DeadLetterQueue, limit)
				if err != nil {
					return err
				}
				defer requeue(held)

				if len(held) == 0 {
					fmt.Println("DLQ is empty")
					return nil
				}
				for _, d := range held {
					fmt.Printf("DLQ Message: %s\n", d.Body)
				}
				fmt.Printf("%d message(s) in %s\n", len(held), cfg.RabbitMQ.DeadLetterQueue)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum messages to show (0 = all)")
	return cmd
}

func dlqReplayCmd(cfg *config.Config) *cobra.Command {
	var (
		transientOnly bool
		delay         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-publish dead-lettered events to the intake queue with retry-count 0",
		Long: `Re-publish dead-lettered events to the intake queue with retry-count 0.

The stored retry count of a replayed payment is not reset: a replayed event
gets one more attempt and is dead-lettered again if that attempt fails.
Events that are not replayed stay in the DLQ.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChannel(cfg, func(ch *amqp.Channel) error {
				held, err := drain(ch, cfg.RabbitMQ.DeadLetterQueue, 0)
				if err != nil {
					return err
				}

				publisher := messaging.NewRabbitMQPublisher(ch, cfg.RabbitMQ.Queue, cfg.RabbitMQ.DeadLetterQueue)
				var kept []amqp.Delivery
				replayed := 0

				for _, d := range held {
					ok, reason := shouldReplay(d.Body, transientOnly)
					if !ok {
						fmt.Printf("[X] %s, leaving in DLQ\n", reason)
						kept = append(kept, d)
						continue
					}

					if delay > 0 {
						time.Sleep(delay)
					}
					if err := publisher.Republish(cmd.Context(), d.Body, 0); err != nil {
						kept = append(kept, d)
						requeue(kept)
						return err
					}
					if err := d.Ack(false); err != nil {
						return fmt.Errorf("failed to ack replayed message: %w", err)
					}
					replayed++
					fmt.Printf("[~] %s\n", reason)
				}

				requeue(kept)
				fmt.Printf("replayed %d, kept %d\n", replayed, len(kept))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&transientOnly, "transient-only", true, "Replay only events flagged simulate_transient_failure")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Wait before each replay")
	return cmd
}

// shouldReplay decides whether a dead-lettered body goes back to intake and
// explains the decision.
func shouldReplay(body []byte, transientOnly bool) (bool, string) {
	event, err := domain.DecodePaymentEvent(body)
	if err != nil {
		return false, fmt.Sprintf("invalid message (%v)", err)
	}
	if transientOnly && !event.Flag(domain.MetadataSimulateTransient) {
		return false, fmt.Sprintf("not a transient failure: %s", event.IdempotencyKey)
	}
	return true, fmt.Sprintf("replaying %s", event.IdempotencyKey)
}

// drain fetches up to limit messages (0 = all) without acking them.
func drain(ch *amqp.Channel, queue string, limit int) ([]amqp.Delivery, error) {
	var held []amqp.Delivery
	for limit == 0 || len(held) < limit {
		d, ok, err := ch.Get(queue, false)
		if err != nil {
			requeue(held)
			return nil, fmt.Errorf("failed to read %s: %w", queue, err)
		}
		if !ok {
			break
		}
		held = append(held, d)
	}
	return held, nil
}

// requeue hands held deliveries back to the broker.
func requeue(held []amqp.Delivery) {
	for _, d := range held {
		_ = d.Nack(false, true)
	}
}
