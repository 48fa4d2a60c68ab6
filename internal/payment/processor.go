package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

// ReasonInvalidAmount is recorded for events whose amount is zero or negative.
const ReasonInvalidAmount = "invalid amount"

// Attempt describes the delivery being processed.
type Attempt struct {
	// RetryCount is the effective number of retries already performed.
	RetryCount int
}

// Processor runs one payment attempt and records its effect on the
// transaction record.
type Processor struct {
	log        *slog.Logger
	store      domain.TransactionStore
	gateway    Gateway
	retryLimit int
}

// NewProcessor builds a Processor. retryLimit caps the stored retry count.
func NewProcessor(log *slog.Logger, store domain.TransactionStore, gateway Gateway, retryLimit int) *Processor {
	return &Processor{
		log:        log,
		store:      store,
		gateway:    gateway,
		retryLimit: retryLimit,
	}
}

// Process charges the event and persists the resulting status.
//
// Success marks the record COMPLETED. A transient failure marks it FAILED
// and stores min(RetryCount+1, retry limit) with the reason. A permanent
// failure marks it FAILED with the reason and leaves the retry count alone.
//
// Errors are unclassified. If a concurrent worker completed the record
// first, the returned error wraps domain.ErrRecordCompleted.
func (p *Processor) Process(ctx context.Context, event *domain.PaymentEvent, attempt Attempt) (Outcome, error) {
	key := event.IdempotencyKey

	var outcome Outcome
	if !event.Amount.IsPositive() {
		outcome = PermanentFailure(ReasonInvalidAmount)
	} else {
		// No deadline is placed on the gateway call; a hung provider blocks
		// this worker until it returns.
		var err error
		outcome, err = p.gateway.Charge(ctx, event)
		if err != nil {
			return Outcome{}, fmt.Errorf("charge %s: %w", key, err)
		}
	}

	if err := p.store.Update(ctx, key, p.updateFor(outcome, attempt)); err != nil {
		return Outcome{}, fmt.Errorf("record outcome %s for %s: %w", outcome.Kind, key, err)
	}

	p.log.Info("payment attempt finished",
		"idempotency_key", key,
		"outcome", outcome.Kind.String(),
		"reason", outcome.Reason,
		"retry_count", attempt.RetryCount,
	)
	return outcome, nil
}

func (p *Processor) updateFor(outcome Outcome, attempt Attempt) domain.RecordUpdate {
	switch outcome.Kind {
	case KindSuccess:
		status := domain.StatusCompleted
		return domain.RecordUpdate{Status: &status}
	case KindTransientFailure:
		status := domain.StatusFailed
		count := min(attempt.RetryCount+1, p.retryLimit)
		reason := outcome.Reason
		return domain.RecordUpdate{Status: &status, RetryCount: &count, LastErrorMessage: &reason}
	default:
		status := domain.StatusFailed
		reason := outcome.Reason
		return domain.RecordUpdate{Status: &status, LastErrorMessage: &reason}
	}
}
