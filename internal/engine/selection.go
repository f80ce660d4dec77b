package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
	"go.uber.org/zap"
)

// SelectionEngine runs the serving lottery: it filters the campaign list
// down to eligible candidates, draws a weighted winner and applies the
// view-side accounting.
type SelectionEngine struct {
	store   storage.CampaignStore
	budget  *BudgetAccountant
	filters *FilterRegistry
	stats   *StatisticsTracker
	trail   storage.EventTrail
	metrics *metrics.Metrics
	logger  *zap.Logger

	// draw returns a uniform value in [1,100]. Injectable for tests.
	draw func() int
}

// NewSelectionEngine wires the serving pipeline together.
func NewSelectionEngine(
	store storage.CampaignStore,
	budget *BudgetAccountant,
	filters *FilterRegistry,
	stats *StatisticsTracker,
	trail storage.EventTrail,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SelectionEngine {
	if trail == nil {
		trail = storage.NopEventTrail{}
	}
	return &SelectionEngine{
		store:   store,
		budget:  budget,
		filters: filters,
		stats:   stats,
		trail:   trail,
		metrics: m,
		logger:  logger,
		draw:    func() int { return rand.Intn(100) + 1 },
	}
}

// Pick draws one campaign from the candidates, weighted by budget ceiling.
// Each candidate gets a share in percent of the pool's combined ceiling,
// clamped into a band: shares above 20 are folded down by their excess,
// shares below 5 are topped up. The draw lands in at most one candidate's
// interval; a pool with a zero combined ceiling, or a draw beyond the last
// interval, picks nobody.
func (e *SelectionEngine) Pick(candidates []*models.Campaign) *models.Campaign {
	var totalBudget float64
	for _, c := range candidates {
		totalBudget += c.Budget.Total
	}
	if totalBudget == 0 {
		return nil
	}

	r := e.draw()
	start, end := 0, 0
	for _, c := range candidates {
		percent := int(math.Round(c.Budget.Total / totalBudget * 100))
		if percent > 20 {
			percent = 20 - (percent - 20)
		} else if percent < 5 {
			percent = 5 + (10 - percent)
		}

		end += percent
		if start < r && r <= end {
			return c
		}
		start += percent
	}
	return nil
}

// Serve answers one ad request. A nil campaign with a nil error is a
// no-fill: nothing matched, nothing was charged. Store outages degrade to a
// no-fill rather than an error.
func (e *SelectionEngine) Serve(ctx context.Context, viewer *models.Viewer) (*models.Campaign, error) {
	started := time.Now()
	e.metrics.RecordServeRequest(viewer.Country)

	listStart := time.Now()
	campaigns, err := e.store.List(ctx)
	e.metrics.RecordStoreOp("list", time.Since(listStart))
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			e.logger.Warn("campaign store unavailable, serving no-fill", zap.Error(err))
			e.metrics.RecordNoFill("store_unavailable", time.Since(started))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	eligible := make([]*models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if !c.Active || !e.budget.IsAvailable(c) {
			continue
		}
		if !e.filters.EvaluateAll(c, viewer) {
			continue
		}
		eligible = append(eligible, c)
	}
	e.metrics.RecordEligible(len(eligible))

	winner := e.Pick(eligible)
	if winner == nil {
		e.metrics.RecordNoFill("no_candidate", time.Since(started))
		return nil, nil
	}

	updated, err := e.stats.Increment(ctx, winner, models.EventView, viewer.Country)
	if err != nil {
		return nil, err
	}
	updated, err = e.budget.Debit(ctx, updated, models.EventView)
	if err != nil {
		return nil, err
	}

	e.recordEvent(ctx, models.EventView, updated, viewer)
	e.metrics.RecordServed(updated.Name, time.Since(started))

	e.logger.Debug("campaign served",
		zap.String("campaign_id", updated.ID),
		zap.String("country", viewer.Country),
	)
	return updated, nil
}

// RegisterClickThrough applies the click-side accounting for a campaign the
// viewer followed. An unknown id performs no writes and returns nothing.
func (e *SelectionEngine) RegisterClickThrough(ctx context.Context, id string, viewer *models.Viewer) (*models.Campaign, error) {
	c, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	updated, err := e.stats.Increment(ctx, c, models.EventClick, viewer.Country)
	if err != nil {
		return nil, err
	}
	updated, err = e.budget.Debit(ctx, updated, models.EventClick)
	if err != nil {
		return nil, err
	}

	e.recordEvent(ctx, models.EventClick, updated, viewer)
	return updated, nil
}

// recordEvent appends to the analytics trail. Best effort: a trail failure
// never fails the serving path.
func (e *SelectionEngine) recordEvent(ctx context.Context, ev models.EventType, c *models.Campaign, viewer *models.Viewer) {
	err := e.trail.Record(ctx, storage.ServeEvent{
		When:         time.Now().UTC(),
		Event:        ev,
		CampaignID:   c.ID,
		CampaignName: c.Name,
		Country:      viewer.Country,
		ViewerID:     viewer.ID,
	})
	if err != nil {
		e.logger.Warn("failed to record serve event", zap.Error(err))
	}
}
