package domain

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateKey is returned by Create when a record with the same idempotency key exists.
	ErrDuplicateKey = errors.New("transaction with idempotency key already exists")

	// ErrNotFound is returned by Update when no record matches the key.
	ErrNotFound = errors.New("transaction not found")

	// ErrRecordCompleted is returned by Update when the record is already COMPLETED.
	ErrRecordCompleted = errors.New("transaction already completed")
)

// TransactionStore is the durable record store keyed by idempotency key.
// The unique-key constraint of the store is the only mutual exclusion between workers.
type TransactionStore interface {
	// Find returns the record for key, or nil and no error when none exists.
	Find(ctx context.Context, key string) (*TransactionRecord, error)

	// Create persists a new record.
	// Returns ErrDuplicateKey if the key is already present.
	Create(ctx context.Context, record *TransactionRecord) error

	// Update applies the non-nil fields and stamps the update time.
	// Returns ErrNotFound if the key is absent and ErrRecordCompleted if the
	// record is terminal.
	Update(ctx context.Context, key string, update RecordUpdate) error
}

// MetricsSink is the set of increment-only counters the pipeline reports to.
// Implementations must be safe for concurrent use.
type MetricsSink interface {
	MessageConsumed()
	PaymentSucceeded()
	PaymentFailed()
	RetryScheduled()
}
