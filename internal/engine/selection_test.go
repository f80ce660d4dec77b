package engine

import (
	"context"
	"testing"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(store storage.CampaignStore) *SelectionEngine {
	logger := zap.NewNop()
	return NewSelectionEngine(
		store,
		NewBudgetAccountant(store, nil),
		NewFilterRegistry(logger),
		NewStatisticsTracker(store, nil, logger),
		nil,
		nil,
		logger,
	)
}

func campaignWithBudget(name string, total float64) *models.Campaign {
	return &models.Campaign{
		Name:   name,
		Link:   "https://example.com/" + name,
		Budget: models.Budget{Total: total, Type: models.BudgetTypeView, Cost: 1000},
	}
}

func TestPickWeightedDraw(t *testing.T) {
	e := newTestEngine(storage.NewInMemoryCampaignStore())

	// shares 10, 10 and 80; the last folds down to -40 and can never win
	candidates := []*models.Campaign{
		campaignWithBudget("a", 10),
		campaignWithBudget("b", 10),
		campaignWithBudget("c", 80),
	}

	cases := []struct {
		draw int
		want string // "" means nobody wins
	}{
		{draw: 1, want: "a"},
		{draw: 10, want: "a"},
		{draw: 11, want: "b"},
		{draw: 20, want: "b"},
		{draw: 50, want: ""},
		{draw: 99, want: ""},
	}
	for _, tc := range cases {
		e.draw = func() int { return tc.draw }
		winner := e.Pick(candidates)
		if tc.want == "" {
			assert.Nil(t, winner, "draw %d", tc.draw)
		} else {
			require.NotNil(t, winner, "draw %d", tc.draw)
			assert.Equal(t, tc.want, winner.Name, "draw %d", tc.draw)
		}
	}
}

func TestPickZeroBudgetPool(t *testing.T) {
	e := newTestEngine(storage.NewInMemoryCampaignStore())
	e.draw = func() int { t.Fatal("draw must not run on a zero pool"); return 0 }

	assert.Nil(t, e.Pick(nil))
	assert.Nil(t, e.Pick([]*models.Campaign{campaignWithBudget("broke", 0)}))
}

func TestPickAllSharesFoldedNegative(t *testing.T) {
	e := newTestEngine(storage.NewInMemoryCampaignStore())

	// 50/50 split folds both shares to -10; every draw misses
	candidates := []*models.Campaign{
		campaignWithBudget("a", 100),
		campaignWithBudget("b", 100),
	}
	for draw := 1; draw <= 100; draw++ {
		d := draw
		e.draw = func() int { return d }
		assert.Nil(t, e.Pick(candidates), "draw %d", d)
	}
}

func activate(t *testing.T, store storage.CampaignStore, id string) {
	t.Helper()
	active := true
	_, err := store.Update(context.Background(), id, models.CampaignPatch{Active: &active})
	require.NoError(t, err)
}

func TestServeAppliesViewAccounting(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	a, err := store.Create(ctx, campaignWithBudget("a", 20))
	require.NoError(t, err)
	b, err := store.Create(ctx, campaignWithBudget("b", 80))
	require.NoError(t, err)
	activate(t, store, a.ID)
	activate(t, store, b.ID)

	e := newTestEngine(store)
	e.draw = func() int { return 10 } // lands in a's interval

	served, err := e.Serve(ctx, &models.Viewer{Country: "DE"})
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, a.ID, served.ID)
	assert.Equal(t, int64(1), served.Stats.Views.Total)
	assert.Equal(t, int64(1), served.Stats.Views.Geo["DE"])
	assert.InDelta(t, 1.0, served.Budget.Used, 1e-9)

	// the loser stays untouched
	got, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stats.Views.Total)
	assert.Zero(t, got.Budget.Used)
}

func TestServeSkipsIneligibleCampaigns(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	inactive, err := store.Create(ctx, campaignWithBudget("inactive", 20))
	require.NoError(t, err)
	_ = inactive

	spent := campaignWithBudget("spent", 20)
	spent.Budget.Used = 21
	created, err := store.Create(ctx, spent)
	require.NoError(t, err)
	activate(t, store, created.ID)

	e := newTestEngine(store)
	e.draw = func() int { return 1 }

	served, err := e.Serve(ctx, &models.Viewer{})
	require.NoError(t, err)
	assert.Nil(t, served, "inactive and overspent campaigns never serve")
}

func TestServeNoFillOnEmptyStore(t *testing.T) {
	e := newTestEngine(storage.NewInMemoryCampaignStore())
	served, err := e.Serve(context.Background(), &models.Viewer{})
	require.NoError(t, err)
	assert.Nil(t, served)
}

func TestServeRespectsFilters(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	a := campaignWithBudget("german only", 20)
	a.Filters = []models.FilterCall{{Name: "countries", Data: []string{"DE"}}}
	createdA, err := store.Create(ctx, a)
	require.NoError(t, err)
	createdB, err := store.Create(ctx, campaignWithBudget("everyone", 80))
	require.NoError(t, err)
	activate(t, store, createdA.ID)
	activate(t, store, createdB.ID)

	e := newTestEngine(store)
	e.draw = func() int { return 10 }

	// US viewer leaves only "everyone" in the pool; its share alone is 100,
	// folded to -60, so nobody wins
	served, err := e.Serve(ctx, &models.Viewer{Country: "US"})
	require.NoError(t, err)
	assert.Nil(t, served)

	served, err = e.Serve(ctx, &models.Viewer{Country: "DE"})
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, createdA.ID, served.ID)
}

func TestRegisterClickThrough(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	c := campaignWithBudget("clicky", 100)
	c.Budget.Type = models.BudgetTypeClick
	created, err := store.Create(ctx, c)
	require.NoError(t, err)

	e := newTestEngine(store)
	clicked, err := e.RegisterClickThrough(ctx, created.ID, &models.Viewer{Country: "FR"})
	require.NoError(t, err)
	require.NotNil(t, clicked)

	assert.Equal(t, int64(1), clicked.Stats.Clicks.Total)
	assert.Equal(t, int64(1), clicked.Stats.Clicks.Geo["FR"])
	assert.InDelta(t, 1.0, clicked.Budget.Used, 1e-9)
	assert.Zero(t, clicked.Stats.Views.Total)
}

func TestRegisterClickThroughUnknownIDWritesNothing(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, campaignWithBudget("bystander", 100))
	require.NoError(t, err)

	e := newTestEngine(store)
	clicked, err := e.RegisterClickThrough(ctx, "unknown", &models.Viewer{})
	require.NoError(t, err)
	assert.Nil(t, clicked)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stats.Clicks.Total)
	assert.Zero(t, got.Budget.Used)
}

func TestClickOnViewBilledCampaignIsFree(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, campaignWithBudget("view billed", 100))
	require.NoError(t, err)

	e := newTestEngine(store)
	clicked, err := e.RegisterClickThrough(ctx, created.ID, &models.Viewer{})
	require.NoError(t, err)
	require.NotNil(t, clicked)

	assert.Equal(t, int64(1), clicked.Stats.Clicks.Total)
	assert.Zero(t, clicked.Budget.Used)
}
