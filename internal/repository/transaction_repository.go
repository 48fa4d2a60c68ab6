package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// TransactionRepository implements domain.TransactionStore using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{
		pool: pool,
	}
}

// Find retrieves a record by its idempotency key. Returns nil, nil when absent.
func (r *TransactionRepository) Find(ctx context.Context, key string) (*domain.TransactionRecord, error) {
	query := `
		SELECT idempotency_key, amount, currency, user_id,
		       status, retry_count, last_error_message,
		       created_at, updated_at
		FROM payment_transactions
		WHERE idempotency_key = $1
	`

	var record domain.TransactionRecord
	var status string

	err := r.pool.QueryRow(ctx, query, key).Scan(
		&record.IdempotencyKey,
		&record.Amount,
		&record.Currency,
		&record.UserID,
		&status,
		&record.RetryCount,
		&record.LastErrorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", key, err)
	}

	record.Status = domain.Status(status)
	return &record, nil
}

// Create persists a new record. A concurrent insert of the same key loses on
// the unique index and gets domain.ErrDuplicateKey.
func (r *TransactionRepository) Create(ctx context.Context, record *domain.TransactionRecord) error {
	query := `
		INSERT INTO payment_transactions (
			idempotency_key, amount, currency, user_id,
			status, retry_count, last_error_message,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		record.IdempotencyKey,
		record.Amount,
		record.Currency,
		record.UserID,
		string(record.Status),
		record.RetryCount,
		record.LastErrorMessage,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("create transaction %s: %w", record.IdempotencyKey, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create transaction %s: %w", record.IdempotencyKey, err)
	}

	return nil
}

// Update applies the non-nil fields of update. COMPLETED records are never
// touched and retry_count never decreases.
func (r *TransactionRepository) Update(ctx context.Context, key string, update domain.RecordUpdate) error {
	query := `
		UPDATE payment_transactions
		SET status = COALESCE($2, status),
		    retry_count = GREATEST(retry_count, COALESCE($3, retry_count)),
		    last_error_message = COALESCE($4, last_error_message),
		    updated_at = $5
		WHERE idempotency_key = $1
		  AND status <> $6
	`

	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	result, err := r.pool.Exec(ctx, query,
		key,
		status,
		update.RetryCount,
		update.LastErrorMessage,
		time.Now().UTC(),
		string(domain.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", key, err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: tell a missing key apart from a terminal record.
	existing, err := r.Find(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update transaction %s: %w", key, domain.ErrNotFound)
	}
	return fmt.Errorf("update transaction %s: %w", key, domain.ErrRecordCompleted)
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
