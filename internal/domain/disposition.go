package domain

import "time"

// Disposition is the terminal handling applied to an inbound message.
type Disposition string

const (
	DispositionAcked        Disposition = "acked"
	DispositionSkipped      Disposition = "skipped"
	DispositionRequeued     Disposition = "requeued"
	DispositionDeadLettered Disposition = "dead_lettered"

	// DispositionRedelivered means the message was handed back to the broker
	// unacknowledged because a publish it depended on failed.
	DispositionRedelivered Disposition = "redelivered"

	// DispositionInterrupted means shutdown arrived during backoff and the
	// message was handed back to the broker before any republish.
	DispositionInterrupted Disposition = "interrupted"
)

// DispositionEntry is one audit row describing how a message was handled.
type DispositionEntry struct {
	IdempotencyKey string
	Disposition    Disposition
	Outcome        string
	RetryCount     int
	Reason         string
	OccurredAt     time.Time
}
