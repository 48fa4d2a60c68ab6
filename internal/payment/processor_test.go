package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/repository"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockGateway returns a scripted outcome and counts calls.
type mockGateway struct {
	outcome Outcome
	err     error
	calls   int
}

func (g *mockGateway) Charge(context.Context, *domain.PaymentEvent) (Outcome, error) {
	g.calls++
	return g.outcome, g.err
}

func seededStore(t *testing.T, event *domain.PaymentEvent) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	if err := store.Create(context.Background(), domain.NewTransactionRecord(event)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return store
}

func paymentEvent(amount string) *domain.PaymentEvent {
	return &domain.PaymentEvent{
		IdempotencyKey: "fixed-key-12345",
		Amount:         decimal.RequireFromString(amount),
		Currency:       "USD",
		UserID:         "user-beta",
	}
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name           string
		amount         string
		gateway        Outcome
		retryCount     int
		wantKind       Kind
		wantStatus     domain.Status
		wantRetryCount int
		wantLastError  string
		wantCharged    bool
	}{
		{
			name:        "success completes the record",
			amount:      "50.00",
			gateway:     Success(),
			wantKind:    KindSuccess,
			wantStatus:  domain.StatusCompleted,
			wantCharged: true,
		},
		{
			name:           "transient failure bumps retry count",
			amount:         "50.00",
			gateway:        TransientFailure(ReasonGatewayUnavailable),
			retryCount:     1,
			wantKind:       KindTransientFailure,
			wantStatus:     domain.StatusFailed,
			wantRetryCount: 2,
			wantLastError:  ReasonGatewayUnavailable,
			wantCharged:    true,
		},
		{
			name:           "transient failure retry count is capped at the limit",
			amount:         "50.00",
			gateway:        TransientFailure(ReasonGatewayUnavailable),
			retryCount:     3,
			wantKind:       KindTransientFailure,
			wantStatus:     domain.StatusFailed,
			wantRetryCount: 3,
			wantLastError:  ReasonGatewayUnavailable,
			wantCharged:    true,
		},
		{
			name:           "permanent failure keeps retry count",
			amount:         "50.00",
			gateway:        PermanentFailure(ReasonInvalidCard),
			retryCount:     2,
			wantKind:       KindPermanentFailure,
			wantStatus:     domain.StatusFailed,
			wantRetryCount: 0,
			wantLastError:  ReasonInvalidCard,
			wantCharged:    true,
		},
		{
			name:          "zero amount is rejected without charging",
			amount:        "0",
			gateway:       Success(),
			wantKind:      KindPermanentFailure,
			wantStatus:    domain.StatusFailed,
			wantLastError: ReasonInvalidAmount,
		},
		{
			name:          "negative amount is rejected without charging",
			amount:        "-10.50",
			gateway:       Success(),
			wantKind:      KindPermanentFailure,
			wantStatus:    domain.StatusFailed,
			wantLastError: ReasonInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			event := paymentEvent(tt.amount)
			store := seededStore(t, event)
			gateway := &mockGateway{outcome: tt.gateway}

			processor := NewProcessor(testLog, store, gateway, 3)
			outcome, err := processor.Process(ctx, event, Attempt{RetryCount: tt.retryCount})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.Kind != tt.wantKind {
				t.Errorf("expected %s, got %s", tt.wantKind, outcome.Kind)
			}
			if (gateway.calls > 0) != tt.wantCharged {
				t.Errorf("expected charged=%v, got %d calls", tt.wantCharged, gateway.calls)
			}

			record, _ := store.Find(ctx, event.IdempotencyKey)
			if record.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, record.Status)
			}
			if record.RetryCount != tt.wantRetryCount {
				t.Errorf("expected retry count %d, got %d", tt.wantRetryCount, record.RetryCount)
			}
			if tt.wantLastError == "" {
				if record.LastErrorMessage != nil {
					t.Errorf("expected no last error, got %q", *record.LastErrorMessage)
				}
			} else if record.LastErrorMessage == nil || *record.LastErrorMessage != tt.wantLastError {
				t.Errorf("expected last error %q, got %v", tt.wantLastError, record.LastErrorMessage)
			}
		})
	}
}

func TestProcessor_GatewayError(t *testing.T) {
	ctx := context.Background()
	event := paymentEvent("50.00")
	store := seededStore(t, event)
	boom := errors.New("socket closed")

	_, err := NewProcessor(testLog, store, &mockGateway{err: boom}, 3).Process(ctx, event, Attempt{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	record, _ := store.Find(ctx, event.IdempotencyKey)
	if record.Status != domain.StatusProcessing {
		t.Errorf("expected record untouched, got %s", record.Status)
	}
}

func TestProcessor_ConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	event := paymentEvent("50.00")
	store := seededStore(t, event)

	completed := domain.StatusCompleted
	if err := store.Update(ctx, event.IdempotencyKey, domain.RecordUpdate{Status: &completed}); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	processor := NewProcessor(testLog, store, &mockGateway{outcome: TransientFailure(ReasonGatewayUnavailable)}, 3)
	_, err := processor.Process(ctx, event, Attempt{})
	if !errors.Is(err, domain.ErrRecordCompleted) {
		t.Fatalf("expected ErrRecordCompleted, got %v", err)
	}

	record, _ := store.Find(ctx, event.IdempotencyKey)
	if record.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED to stay terminal, got %s", record.Status)
	}
}

func TestProcessor_MissingRecord(t *testing.T) {
	event := paymentEvent("50.00")
	processor := NewProcessor(testLog, repository.NewMemoryStore(), &mockGateway{outcome: Success()}, 3)

	_, err := processor.Process(context.Background(), event, Attempt{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSimulatedGateway_Flags(t *testing.T) {
	// Random source that would always succeed
	never := func() float64 { return 0.99 }

	tests := []struct {
		name     string
		metadata map[string]any
		want     Outcome
	}{
		{name: "no flags", metadata: nil, want: Success()},
		{name: "transient flag", metadata: map[string]any{domain.MetadataSimulateTransient: true}, want: TransientFailure(ReasonGatewayUnavailable)},
		{name: "permanent flag", metadata: map[string]any{domain.MetadataSimulatePermanent: true}, want: PermanentFailure(ReasonInvalidCard)},
		{
			name: "transient wins over permanent",
			metadata: map[string]any{
				domain.MetadataSimulateTransient: true,
				domain.MetadataSimulatePermanent: true,
			},
			want: TransientFailure(ReasonGatewayUnavailable),
		},
		{name: "string flag", metadata: map[string]any{domain.MetadataSimulatePermanent: "true"}, want: PermanentFailure(ReasonInvalidCard)},
		{name: "false flag", metadata: map[string]any{domain.MetadataSimulateTransient: false}, want: Success()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := NewSimulatedGateway(0.2, 0.05, 0, WithRandom(never))
			event := paymentEvent("50.00")
			event.Metadata = tt.metadata

			got, err := gateway.Charge(context.Background(), event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSimulatedGateway_Probabilities(t *testing.T) {
	tests := []struct {
		name  string
		draws []float64
		want  Kind
	}{
		{name: "transient draw", draws: []float64{0.1}, want: KindTransientFailure},
		{name: "permanent draw", draws: []float64{0.5, 0.01}, want: KindPermanentFailure},
		{name: "success draw", draws: []float64{0.5, 0.5}, want: KindSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := 0
			next := func() float64 {
				v := tt.draws[i]
				i++
				return v
			}
			gateway := NewSimulatedGateway(0.2, 0.05, 0, WithRandom(next))

			got, err := gateway.Charge(context.Background(), paymentEvent("50.00"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Kind)
			}
		})
	}
}

func TestSimulatedGateway_Latency(t *testing.T) {
	var slept time.Duration
	gateway := NewSimulatedGateway(0, 0, 100*time.Millisecond, WithSleep(func(d time.Duration) { slept += d }))

	if _, err := gateway.Charge(context.Background(), paymentEvent("50.00")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 100*time.Millisecond {
		t.Errorf("expected 100ms latency, got %s", slept)
	}
}
