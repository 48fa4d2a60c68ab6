package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cast"
)

// RetryCountHeader carries the number of retries already performed.
const RetryCountHeader = "retry-count"

// RetryCount reads the retry-count header. A missing header is 0. Any integer
// width, float or numeric string is accepted; negative values clamp to 0.
func RetryCount(headers amqp.Table) (int, error) {
	v, ok := headers[RetryCountHeader]
	if !ok || v == nil {
		return 0, nil
	}

	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s header %v (%T): %w", RetryCountHeader, v, v, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// retryHeaders builds the header table for a republished message.
// AMQP tables have no plain int; int32 is the type the broker round-trips.
func retryHeaders(retryCount int) amqp.Table {
	return amqp.Table{RetryCountHeader: int32(retryCount)}
}

// headerMap copies an amqp.Table into a plain map.
func headerMap(headers amqp.Table) map[string]any {
	m := make(map[string]any, len(headers))
	for k, v := range headers {
		m[k] = v
	}
	return m
}
