package payment

import "fmt"

// Kind classifies the result of a single payment attempt.
type Kind int

const (
	KindSuccess Kind = iota
	// KindTransientFailure may succeed on a later attempt.
	KindTransientFailure
	// KindPermanentFailure will never succeed; retrying is pointless.
	KindPermanentFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransientFailure:
		return "transient_failure"
	case KindPermanentFailure:
		return "permanent_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classified result of a payment attempt.
// Reason is empty for KindSuccess.
type Outcome struct {
	Kind   Kind
	Reason string
}

func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

func TransientFailure(reason string) Outcome {
	return Outcome{Kind: KindTransientFailure, Reason: reason}
}

func PermanentFailure(reason string) Outcome {
	return Outcome{Kind: KindPermanentFailure, Reason: reason}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
}
