package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operate the payment processor: publish test events, inspect and replay the DLQ",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			// Explicit flags beat environment and config file
			flags := cmd.Flags()
			if flags.Changed("rabbitmq-url") {
				loaded.RabbitMQ.URL = cfg.RabbitMQ.URL
			}
			if flags.Changed("queue") {
				loaded.RabbitMQ.Queue = cfg.RabbitMQ.Queue
			}
			if flags.Changed("dlq") {
				loaded.RabbitMQ.DeadLetterQueue = cfg.RabbitMQ.DeadLetterQueue
			}
			*cfg = *loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.RabbitMQ.URL, "rabbitmq-url", cfg.RabbitMQ.URL, "RabbitMQ URL (env RABBITMQ_URL)")
	cmd.PersistentFlags().StringVar(&cfg.RabbitMQ.Queue, "queue", cfg.RabbitMQ.Queue, "Intake queue (env PAYMENT_INITIATION_QUEUE)")
	cmd.PersistentFlags().StringVar(&cfg.RabbitMQ.DeadLetterQueue, "dlq", cfg.RabbitMQ.DeadLetterQueue, "Dead-letter queue (env PAYMENT_DLQ)")

	cmd.AddCommand(publishCmd(cfg))
	cmd.AddCommand(dlqCmd(cfg))
	cmd.AddCommand(statusCmd(cfg))
	cmd.AddCommand(historyCmd(cfg))

	return cmd
}
