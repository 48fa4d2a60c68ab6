package domain

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

const (
	// MetadataSimulateTransient forces a transient failure in the simulated gateway.
	MetadataSimulateTransient = "simulate_transient_failure"

	// MetadataSimulatePermanent forces a permanent failure in the simulated gateway.
	MetadataSimulatePermanent = "simulate_permanent_failure"
)

// DecodeError reports a message body that cannot be turned into a PaymentEvent.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payment event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodePaymentEvent parses a raw message body and validates the required fields.
func DecodePaymentEvent(body []byte) (*PaymentEvent, error) {
	var event PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if err := validateEvent(&event); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &event, nil
}

// validateEvent checks the fields without which the event cannot be tracked.
func validateEvent(event *PaymentEvent) error {
	if event.IdempotencyKey == "" {
		return fmt.Errorf("idempotency_key is required")
	}
	if event.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if event.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// Flag reads a boolean metadata entry. Missing or malformed entries are false.
func (e *PaymentEvent) Flag(name string) bool {
	if e.Metadata == nil {
		return false
	}
	v, ok := e.Metadata[name]
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}
