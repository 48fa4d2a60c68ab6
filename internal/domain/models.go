package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is the payload of a payment-initiation message.
// The retry count is not part of the body; it travels as message metadata.
type PaymentEvent struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	UserID         string          `json:"user_id"`
	Timestamp      string          `json:"timestamp,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// TransactionRecord is the persisted state of a payment, keyed by idempotency key.
type TransactionRecord struct {
	IdempotencyKey   string
	Amount           decimal.Decimal
	Currency         string
	UserID           string
	Status           Status
	RetryCount       int
	LastErrorMessage *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Status represents the lifecycle state of a transaction record.
type Status string

const (
	// StatusProcessing is assigned when a key is first seen.
	StatusProcessing Status = "PROCESSING"

	// StatusCompleted is terminal: later events with the same key are no-ops.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed may be revisited by a later retry attempt.
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether no further mutation is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// RecordUpdate holds the fields to change on a record. Nil fields are left untouched.
type RecordUpdate struct {
	Status           *Status
	RetryCount       *int
	LastErrorMessage *string
}

// NewTransactionRecord creates the PROCESSING record for the first sighting of an event.
func NewTransactionRecord(event *PaymentEvent) *TransactionRecord {
	now := time.Now().UTC()
	return &TransactionRecord{
		IdempotencyKey: event.IdempotencyKey,
		Amount:         event.Amount,
		Currency:       event.Currency,
		UserID:         event.UserID,
		Status:         StatusProcessing,
		RetryCount:     0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply copies the non-nil fields of u onto r and stamps UpdatedAt.
// RetryCount never decreases.
func (r *TransactionRecord) Apply(u RecordUpdate, now time.Time) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.RetryCount != nil && *u.RetryCount > r.RetryCount {
		r.RetryCount = *u.RetryCount
	}
	if u.LastErrorMessage != nil {
		msg := *u.LastErrorMessage
		r.LastErrorMessage = &msg
	}
	r.UpdatedAt = now
}

// Clone returns a deep copy of the record.
func (r *TransactionRecord) Clone() *TransactionRecord {
	c := *r
	if r.LastErrorMessage != nil {
		msg := *r.LastErrorMessage
		c.LastErrorMessage = &msg
	}
	return &c
}
