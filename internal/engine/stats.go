package engine

import (
	"context"
	"fmt"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
	"go.uber.org/zap"
)

// Sink receives statistic events with their running totals. Implementations
// must be cheap; the tracker calls Emit inline on the serving path.
type Sink interface {
	Emit(event, campaign string, total int64)
}

// StatisticsTracker records view and click counters against the store and
// mirrors each increment to the metrics sink.
type StatisticsTracker struct {
	store  storage.CampaignStore
	sink   Sink
	logger *zap.Logger
}

// NewStatisticsTracker creates a tracker. sink may be nil.
func NewStatisticsTracker(store storage.CampaignStore, sink Sink, logger *zap.Logger) *StatisticsTracker {
	return &StatisticsTracker{store: store, sink: sink, logger: logger}
}

// Increment raises the event counter by one, merging a per-country increment
// when the viewer's country is known. The sink sees the new running total;
// sink delivery is fire-and-forget.
func (t *StatisticsTracker) Increment(ctx context.Context, c *models.Campaign, ev models.EventType, country string) (*models.Campaign, error) {
	updated, err := t.store.IncrementStat(ctx, c.ID, ev, country)
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s counter: %w", ev, err)
	}

	if t.sink != nil {
		total := updated.Stats.Views.Total
		if ev == models.EventClick {
			total = updated.Stats.Clicks.Total
		}
		t.sink.Emit(string(ev), updated.Name, total)
	}

	return updated, nil
}

// Reset zeroes all counters, totals and geo breakdowns alike, in one store
// update. It writes no audit entry; that is the caller's decision.
func (t *StatisticsTracker) Reset(ctx context.Context, id string) (*models.Campaign, error) {
	updated, err := t.store.ResetStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reset statistics: %w", err)
	}
	return updated, nil
}
