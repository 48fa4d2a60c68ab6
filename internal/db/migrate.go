package db

import (
	"context"
	"fmt"
)

// schema creates the payment_transactions table. The unique index on
// idempotency_key is what resolves concurrent first-sighting races.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS payment_transactions (
		idempotency_key VARCHAR(255) NOT NULL,
		amount NUMERIC(18, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_transactions_idempotency_key
		ON payment_transactions(idempotency_key);`,
	`CREATE INDEX IF NOT EXISTS idx_payment_transactions_status
		ON payment_transactions(status);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}
