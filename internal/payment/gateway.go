package payment

import (
	"context"
	"math/rand"
	"time"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

const (
	ReasonGatewayUnavailable = "Temporary payment gateway issue"
	ReasonInvalidCard        = "Invalid card details"
)

// Gateway performs the external charge for an event.
// A returned error is unclassified; a classified failure is an Outcome.
type Gateway interface {
	Charge(ctx context.Context, event *domain.PaymentEvent) (Outcome, error)
}

// SimulatedGateway fakes a payment provider. Metadata flags force a failure
// kind; otherwise failures are drawn at random.
type SimulatedGateway struct {
	transientRate float64
	permanentRate float64
	latency       time.Duration

	draw  func() float64
	sleep func(time.Duration)
}

// SimulatedGatewayOption customises a SimulatedGateway.
type SimulatedGatewayOption func(*SimulatedGateway)

// WithRandom replaces the random source. f must return values in [0, 1).
func WithRandom(f func() float64) SimulatedGatewayOption {
	return func(g *SimulatedGateway) {
		g.draw = f
	}
}

// WithSleep replaces the latency wait.
func WithSleep(f func(time.Duration)) SimulatedGatewayOption {
	return func(g *SimulatedGateway) {
		g.sleep = f
	}
}

func NewSimulatedGateway(transientRate, permanentRate float64, latency time.Duration, opts ...SimulatedGatewayOption) *SimulatedGateway {
	g := &SimulatedGateway{
		transientRate: transientRate,
		permanentRate: permanentRate,
		latency:       latency,
		draw:          rand.Float64,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Charge simulates the provider call. The latency wait ignores ctx: an
// in-flight charge is never abandoned halfway.
func (g *SimulatedGateway) Charge(_ context.Context, event *domain.PaymentEvent) (Outcome, error) {
	if g.latency > 0 {
		g.sleep(g.latency)
	}

	// Transient wins when both flags are set
	if event.Flag(domain.MetadataSimulateTransient) {
		return TransientFailure(ReasonGatewayUnavailable), nil
	}
	if event.Flag(domain.MetadataSimulatePermanent) {
		return PermanentFailure(ReasonInvalidCard), nil
	}

	if g.draw() < g.transientRate {
		return TransientFailure(ReasonGatewayUnavailable), nil
	}
	if g.draw() < g.permanentRate {
		return PermanentFailure(ReasonInvalidCard), nil
	}
	return Success(), nil
}
