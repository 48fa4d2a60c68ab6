package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
)

// ClickHouseClient wraps the ClickHouse driver connection
type ClickHouseClient struct {
	conn driver.Conn
}

// NewClickHouseClient creates a new ClickHouse client with the given configuration
func NewClickHouseClient(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseClient, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

// Conn returns the underlying ClickHouse connection
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// EnsureSchema creates the disposition audit table.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS payment_dispositions (
		idempotency_key String,
		disposition LowCardinality(String),
		outcome LowCardinality(String),
		retry_count UInt32,
		reason String,
		occurred_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (idempotency_key, occurred_at)
	`
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create payment_dispositions table: %w", err)
	}
	return nil
}

// Ping checks that ClickHouse is reachable
func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
