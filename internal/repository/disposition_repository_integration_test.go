package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/db"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/repository"
)

func TestDispositionRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:23.3.8.21-alpine",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("clickhouse"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}
	defer container.Terminate(ctx)

	host, err := container.ConnectionHost(ctx)
	if err != nil {
		t.Fatalf("Failed to get ClickHouse host: %v", err)
	}

	client, err := db.NewClickHouseClient(ctx, config.ClickHouseConfig{
		Host:     host,
		Database: "default",
		User:     "default",
		Password: "clickhouse",
	})
	if err != nil {
		t.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer client.Close()

	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	repo := repository.NewDispositionRepository(client)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	entries := []domain.DispositionEntry{
		{IdempotencyKey: "k1", Disposition: domain.DispositionRequeued, Outcome: "transient_failure", RetryCount: 1, Reason: "Temporary payment gateway issue", OccurredAt: base},
		{IdempotencyKey: "k1", Disposition: domain.DispositionAcked, Outcome: "success", RetryCount: 1, OccurredAt: base.Add(2 * time.Second)},
		{IdempotencyKey: "k2", Disposition: domain.DispositionDeadLettered, Outcome: "permanent_failure", Reason: "Invalid card details", OccurredAt: base},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := repo.ListByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("ListByKey failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries for k1, got %d", len(got))
	}
	if got[0].Disposition != domain.DispositionRequeued || got[1].Disposition != domain.DispositionAcked {
		t.Errorf("Expected requeued then acked, got %s then %s", got[0].Disposition, got[1].Disposition)
	}
	if got[0].RetryCount != 1 || got[0].Reason != "Temporary payment gateway issue" {
		t.Errorf("Unexpected first entry %+v", got[0])
	}
	if !got[1].OccurredAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("Expected occurred_at %s, got %s", base.Add(2*time.Second), got[1].OccurredAt)
	}

	if err := client.Ping(ctx); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}
}
