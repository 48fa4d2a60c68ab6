package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

// Decision is the guard's verdict for an incoming event.
type Decision int

const (
	// DecisionSkip means the key already reached COMPLETED; nothing to do.
	DecisionSkip Decision = iota
	// DecisionNew means this worker created the PROCESSING record.
	DecisionNew
	// DecisionContinueRetry means a PROCESSING or FAILED record exists and this
	// delivery is a reprocessing attempt.
	DecisionContinueRetry
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionNew:
		return "new"
	case DecisionContinueRetry:
		return "continue_retry"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// CompletedCache remembers keys known to be COMPLETED. It is an optimisation
// only: the store stays the source of truth.
type CompletedCache interface {
	IsCompleted(ctx context.Context, key string) (bool, error)
	MarkCompleted(ctx context.Context, key string) error
}

// Guard decides whether an event is skipped, new, or a retry continuation.
type Guard struct {
	log   *slog.Logger
	store domain.TransactionStore
	cache CompletedCache
}

// NewGuard creates a Guard. cache may be nil.
func NewGuard(log *slog.Logger, store domain.TransactionStore, cache CompletedCache) *Guard {
	return &Guard{log: log, store: store, cache: cache}
}

// Check looks the key up and creates the PROCESSING record on first sight.
// The returned record is nil for DecisionSkip.
func (g *Guard) Check(ctx context.Context, event *domain.PaymentEvent) (Decision, *domain.TransactionRecord, error) {
	key := event.IdempotencyKey

	if g.cache != nil {
		done, err := g.cache.IsCompleted(ctx, key)
		if err != nil {
			g.log.Warn("completed-key cache lookup failed", "idempotency_key", key, "err", err)
		} else if done {
			return DecisionSkip, nil, nil
		}
	}

	existing, err := g.store.Find(ctx, key)
	if err != nil {
		return 0, nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		return g.classify(ctx, existing), existing, nil
	}

	record := domain.NewTransactionRecord(event)
	err = g.store.Create(ctx, record)
	if err == nil {
		return DecisionNew, record, nil
	}
	if !errors.Is(err, domain.ErrDuplicateKey) {
		return 0, nil, fmt.Errorf("idempotency create: %w", err)
	}

	// Another worker won the insert; continue from its record.
	g.log.Info("lost first-sighting race, continuing existing record", "idempotency_key", key)
	existing, err = g.store.Find(ctx, key)
	if err != nil {
		return 0, nil, fmt.Errorf("idempotency re-read: %w", err)
	}
	if existing == nil {
		return 0, nil, fmt.Errorf("idempotency re-read: record %s vanished after duplicate-key conflict", key)
	}
	return g.classify(ctx, existing), existing, nil
}

func (g *Guard) classify(ctx context.Context, record *domain.TransactionRecord) Decision {
	if record.Status == domain.StatusCompleted {
		g.Remember(ctx, record.IdempotencyKey)
		return DecisionSkip
	}
	return DecisionContinueRetry
}

// Remember records key as completed in the cache, if one is configured.
func (g *Guard) Remember(ctx context.Context, key string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.MarkCompleted(ctx, key); err != nil {
		g.log.Warn("completed-key cache write failed", "idempotency_key", key, "err", err)
	}
}
