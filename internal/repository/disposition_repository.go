package repository

import (
	"context"
	"fmt"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/db"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

// DispositionRepository appends message dispositions to ClickHouse
type DispositionRepository struct {
	db *db.ClickHouseClient
}

// NewDispositionRepository creates a new disposition repository
func NewDispositionRepository(db *db.ClickHouseClient) *DispositionRepository {
	return &DispositionRepository{db: db}
}

// Record inserts one disposition row
func (r *DispositionRepository) Record(ctx context.Context, entry domain.DispositionEntry) error {
	query := `
		INSERT INTO payment_dispositions (
			idempotency_key, disposition, outcome, retry_count, reason, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		entry.IdempotencyKey,
		string(entry.Disposition),
		entry.Outcome,
		uint32(entry.RetryCount),
		entry.Reason,
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert disposition for %s: %w", entry.IdempotencyKey, err)
	}

	return nil
}

// ListByKey returns the dispositions recorded for a key, oldest first
func (r *DispositionRepository) ListByKey(ctx context.Context, key string) ([]domain.DispositionEntry, error) {
	query := `
		SELECT idempotency_key, disposition, outcome, retry_count, reason, occurred_at
		FROM payment_dispositions
		WHERE idempotency_key = ?
		ORDER BY occurred_at ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispositions for %s: %w", key, err)
	}
	defer rows.Close()

	var entries []domain.DispositionEntry
	for rows.Next() {
		var entry domain.DispositionEntry
		var disposition string
		var retryCount uint32

		if err := rows.Scan(
			&entry.IdempotencyKey,
			&disposition,
			&entry.Outcome,
			&retryCount,
			&entry.Reason,
			&entry.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan disposition row: %w", err)
		}

		entry.Disposition = domain.Disposition(disposition)
		entry.RetryCount = int(retryCount)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating disposition rows: %w", err)
	}

	return entries, nil
}
