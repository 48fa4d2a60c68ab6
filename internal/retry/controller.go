// Package retry decides the fate of every inbound payment message: ack,
// republish with backoff, or dead-letter.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/idempotency"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/payment"
)

// maxBackoffShift bounds the exponent of Backoff.
const maxBackoffShift = 30

// Message is an inbound delivery stripped of broker details.
type Message struct {
	Body []byte
	// RetryCount is the value of the retry-count header, 0 when absent.
	RetryCount int
	Headers    map[string]any
}

// Acknowledger settles the inbound delivery. Exactly one method is called
// per message.
type Acknowledger interface {
	Ack() error
	// Requeue hands the message back to the broker for redelivery.
	Requeue() error
}

// Publisher sends messages back to the intake queue or to the dead-letter queue.
type Publisher interface {
	Republish(ctx context.Context, body []byte, retryCount int) error
	DeadLetter(ctx context.Context, body []byte) error
}

// DispositionRecorder receives one entry per handled message.
type DispositionRecorder interface {
	Record(ctx context.Context, entry domain.DispositionEntry) error
}

// Option customises a Controller.
type Option func(*Controller)

// WithRecorder attaches an audit recorder.
func WithRecorder(r DispositionRecorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithWait replaces the backoff wait. The function must return ctx.Err()
// if ctx is done before d elapses.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.wait = wait
	}
}

// Controller handles one message at a time.
type Controller struct {
	log          *slog.Logger
	guard        *idempotency.Guard
	processor    *payment.Processor
	publisher    Publisher
	metrics      domain.MetricsSink
	recorder     DispositionRecorder
	retryLimit   int
	initialDelay time.Duration
	wait         func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// NewController builds a Controller that allows retryLimit republishes per
// payment, the first one after initialDelay.
func NewController(
	log *slog.Logger,
	guard *idempotency.Guard,
	processor *payment.Processor,
	publisher Publisher,
	metrics domain.MetricsSink,
	retryLimit int,
	initialDelay time.Duration,
	opts ...Option,
) *Controller {
	c := &Controller{
		log:          log,
		guard:        guard,
		processor:    processor,
		publisher:    publisher,
		metrics:      metrics,
		retryLimit:   retryLimit,
		initialDelay: initialDelay,
		wait:         sleepContext,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns initial * 2^count, saturating at the largest Duration.
func Backoff(initial time.Duration, count int) time.Duration {
	if count <= 0 {
		return initial
	}
	if count > maxBackoffShift {
		count = maxBackoffShift
	}
	if initial > time.Duration(math.MaxInt64>>count) {
		return time.Duration(math.MaxInt64)
	}
	return initial * time.Duration(int64(1)<<count)
}

// Handle processes msg and settles it through ack. It never returns an error:
// every failure maps to a disposition. Cancelling ctx only interrupts the
// backoff wait; a started attempt always runs to its store update.
func (c *Controller) Handle(ctx context.Context, msg Message, ack Acknowledger) domain.Disposition {
	c.metrics.MessageConsumed()
	work := context.WithoutCancel(ctx)

	event, err := domain.DecodePaymentEvent(msg.Body)
	if err != nil {
		return c.abandon(ctx, msg, ack, "", err)
	}
	key := event.IdempotencyKey

	decision, record, err := c.guard.Check(work, event)
	if err != nil {
		return c.abandon(ctx, msg, ack, key, err)
	}
	if decision == idempotency.DecisionSkip {
		c.log.Info("payment already completed, skipping", "idempotency_key", key)
		return c.settle(ctx, ack, entry{key: key, disposition: domain.DispositionSkipped, retryCount: msg.RetryCount})
	}

	count := msg.RetryCount
	if record != nil && record.RetryCount > count {
		count = record.RetryCount
	}

	outcome, err := c.processor.Process(work, event, payment.Attempt{RetryCount: count})
	if err != nil {
		if errors.Is(err, domain.ErrRecordCompleted) {
			c.log.Info("payment completed concurrently, skipping", "idempotency_key", key)
			return c.settle(ctx, ack, entry{key: key, disposition: domain.DispositionSkipped, retryCount: count})
		}
		return c.abandon(ctx, msg, ack, key, err)
	}

	e := entry{key: key, outcome: outcome.Kind.String(), reason: outcome.Reason, retryCount: count}

	switch outcome.Kind {
	case payment.KindSuccess:
		c.guard.Remember(work, key)
		c.metrics.PaymentSucceeded()
		e.disposition = domain.DispositionAcked
		return c.settle(ctx, ack, e)

	case payment.KindTransientFailure:
		if count < c.retryLimit {
			return c.scheduleRetry(ctx, msg, ack, e)
		}
		c.log.Warn("retry limit reached, dead-lettering",
			"idempotency_key", key, "retry_count", count, "retry_limit", c.retryLimit)
		return c.deadLetter(ctx, msg, ack, e)

	default:
		c.log.Warn("permanent payment failure, dead-lettering",
			"idempotency_key", key, "reason", outcome.Reason)
		return c.deadLetter(ctx, msg, ack, e)
	}
}

// scheduleRetry waits out the backoff, republishes with count+1 and acks the original.
func (c *Controller) scheduleRetry(ctx context.Context, msg Message, ack Acknowledger, e entry) domain.Disposition {
	delay := Backoff(c.initialDelay, e.retryCount)
	c.log.Info("scheduling retry",
		"idempotency_key", e.key, "retry_count", e.retryCount+1, "delay", delay.String())

	if err := c.wait(ctx, delay); err != nil {
		c.log.Warn("backoff interrupted, returning message to broker", "idempotency_key", e.key, "err", err)
		e.disposition = domain.DispositionInterrupted
		return c.requeue(ctx, ack, e)
	}

	if err := c.publisher.Republish(context.WithoutCancel(ctx), msg.Body, e.retryCount+1); err != nil {
		c.log.Error("republish failed, returning message to broker", "idempotency_key", e.key, "err", err)
		e.disposition = domain.DispositionRedelivered
		e.reason = err.Error()
		return c.requeue(ctx, ack, e)
	}

	c.metrics.RetryScheduled()
	e.disposition = domain.DispositionRequeued
	e.retryCount++
	return c.settle(ctx, ack, e)
}

// deadLetter parks a classified failure. The original is acked only after the
// dead-letter publish succeeded.
func (c *Controller) deadLetter(ctx context.Context, msg Message, ack Acknowledger, e entry) domain.Disposition {
	if err := c.publisher.DeadLetter(context.WithoutCancel(ctx), msg.Body); err != nil {
		c.log.Error("dead-letter publish failed, returning message to broker", "idempotency_key", e.key, "err", err)
		e.disposition = domain.DispositionRedelivered
		e.reason = err.Error()
		return c.requeue(ctx, ack, e)
	}

	c.metrics.PaymentFailed()
	e.disposition = domain.DispositionDeadLettered
	return c.settle(ctx, ack, e)
}

// abandon handles failures that cannot be classified. The message is
// dead-lettered on a best-effort basis and acked either way so a poison
// message cannot loop.
func (c *Controller) abandon(ctx context.Context, msg Message, ack Acknowledger, key string, cause error) domain.Disposition {
	var decodeErr *domain.DecodeError
	if errors.As(cause, &decodeErr) {
		c.log.Error("malformed payment message", "err", cause, "body", string(msg.Body))
	} else {
		c.log.Error("unexpected error processing payment",
			"idempotency_key", key, "retry_count", msg.RetryCount, "err", cause)
	}

	if err := c.publisher.DeadLetter(context.WithoutCancel(ctx), msg.Body); err != nil {
		c.log.Error("dead-letter publish failed, dropping message", "idempotency_key", key, "err", err)
	}

	c.metrics.PaymentFailed()
	return c.settle(ctx, ack, entry{
		key:         key,
		disposition: domain.DispositionDeadLettered,
		outcome:     "error",
		reason:      cause.Error(),
		retryCount:  msg.RetryCount,
	})
}

func (c *Controller) settle(ctx context.Context, ack Acknowledger, e entry) domain.Disposition {
	if err := ack.Ack(); err != nil {
		c.log.Error("ack failed", "idempotency_key", e.key, "err", err)
	}
	c.record(ctx, e)
	return e.disposition
}

func (c *Controller) requeue(ctx context.Context, ack Acknowledger, e entry) domain.Disposition {
	if err := ack.Requeue(); err != nil {
		c.log.Error("requeue failed", "idempotency_key", e.key, "err", err)
	}
	c.record(ctx, e)
	return e.disposition
}

func (c *Controller) record(ctx context.Context, e entry) {
	c.log.Debug("message settled", "idempotency_key", e.key, "disposition", string(e.disposition))
	if c.recorder == nil {
		return
	}
	err := c.recorder.Record(context.WithoutCancel(ctx), domain.DispositionEntry{
		IdempotencyKey: e.key,
		Disposition:    e.disposition,
		Outcome:        e.outcome,
		RetryCount:     e.retryCount,
		Reason:         e.reason,
		OccurredAt:     c.now(),
	})
	if err != nil {
		c.log.Warn("failed to record disposition", "idempotency_key", e.key, "err", err)
	}
}

type entry struct {
	key         string
	disposition domain.Disposition
	outcome     string
	reason      string
	retryCount  int
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
