package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/db"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/repository"
)

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status [idempotency-key]",
		Short: "Show the stored transaction record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			record, err := repository.NewTransactionRepository(pool.Pool).Find(ctx, args[0])
			if err != nil {
				return err
			}
			if record == nil {
				fmt.Printf("no transaction for %s\n", args[0])
				return nil
			}

			lastError := "-"
			if record.LastErrorMessage != nil {
				lastError = *record.LastErrorMessage
			}

			fmt.Println("Transaction")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  Key:         %s\n", record.IdempotencyKey)
			fmt.Printf("  Amount:      %s %s\n", record.Amount.StringFixed(2), record.Currency)
			fmt.Printf("  User:        %s\n", record.UserID)
			fmt.Printf("  Status:      %s\n", record.Status)
			fmt.Printf("  Retries:     %d\n", record.RetryCount)
			fmt.Printf("  Last error:  %s\n", lastError)
			fmt.Printf("  Created:     %s\n", record.CreatedAt.Format(time.RFC3339))
			fmt.Printf("  Updated:     %s\n", record.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func historyCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "history [idempotency-key]",
		Short: "Show the recorded dispositions for a key (requires CLICKHOUSE_HOST)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ClickHouse.Host == "" {
				return fmt.Errorf("CLICKHOUSE_HOST is not set; disposition audit is disabled")
			}
			ctx := cmd.Context()

			client, err := db.NewClickHouseClient(ctx, cfg.ClickHouse)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := repository.NewDispositionRepository(client).ListByKey(ctx, args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("no dispositions recorded for %s\n", args[0])
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-13s  retry=%d  %-17s  %s\n",
					e.OccurredAt.Format(time.RFC3339), e.Disposition, e.RetryCount, e.Outcome, e.Reason)
			}
			return nil
		},
	}
}
