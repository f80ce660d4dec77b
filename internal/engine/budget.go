package engine

import (
	"context"
	"fmt"

	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
)

// BudgetAccountant applies budget checks and debits for serving events.
// Debits go through the store's relative-increment path so two concurrent
// events never lose an update.
type BudgetAccountant struct {
	store   storage.CampaignStore
	metrics *metrics.Metrics
}

// NewBudgetAccountant creates a budget accountant over the given store.
func NewBudgetAccountant(store storage.CampaignStore, m *metrics.Metrics) *BudgetAccountant {
	return &BudgetAccountant{store: store, metrics: m}
}

// IsAvailable reports whether the campaign still has budget to serve.
// Checked before serving; the last event may overshoot the ceiling.
func (a *BudgetAccountant) IsAvailable(c *models.Campaign) bool {
	return c.Budget.Available()
}

// Debit charges one event against the campaign's budget. Events the budget
// type does not bill for leave the campaign untouched.
func (a *BudgetAccountant) Debit(ctx context.Context, c *models.Campaign, ev models.EventType) (*models.Campaign, error) {
	if !c.Budget.Charges(ev) {
		return c, nil
	}

	updated, err := a.store.DebitBudget(ctx, c.ID, c.Budget.EventCost())
	if err != nil {
		return nil, fmt.Errorf("failed to debit budget: %w", err)
	}

	a.metrics.RecordDebit(string(ev), updated.Name, updated.Budget.Used)
	return updated, nil
}
