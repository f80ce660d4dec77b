package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const serveEventsSchema = `
CREATE TABLE IF NOT EXISTS serve_events (
	ts            DateTime64(3),
	event         LowCardinality(String),
	campaign_id   String,
	campaign_name LowCardinality(String),
	country       LowCardinality(String),
	viewer_id     String
) ENGINE = MergeTree()
ORDER BY (campaign_id, ts)`

// ClickHouseEventTrail appends serving events to ClickHouse for analytics
// dashboards. Inserts are asynchronous; the serving path never waits for
// the batch to flush.
type ClickHouseEventTrail struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseEventTrail creates the trail and its table.
func NewClickHouseEventTrail(ctx context.Context, conn driver.Conn, logger *zap.Logger) (*ClickHouseEventTrail, error) {
	if err := conn.Exec(ctx, serveEventsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure serve_events schema: %w", err)
	}
	return &ClickHouseEventTrail{conn: conn, logger: logger}, nil
}

// Record appends one event row.
func (t *ClickHouseEventTrail) Record(ctx context.Context, ev ServeEvent) error {
	err := t.conn.AsyncInsert(ctx, `
		INSERT INTO serve_events (ts, event, campaign_id, campaign_name, country, viewer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, false, ev.When, string(ev.Event), ev.CampaignID, ev.CampaignName, ev.Country, ev.ViewerID)
	if err != nil {
		return fmt.Errorf("failed to record serve event: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection.
func (t *ClickHouseEventTrail) Close() error {
	return t.conn.Close()
}
