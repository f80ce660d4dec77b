package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaign() *models.Campaign {
	return &models.Campaign{
		Name: "test campaign",
		Link: "https://example.com",
		Budget: models.Budget{
			Total: 100,
			Type:  models.BudgetTypeView,
			Cost:  10,
		},
	}
}

func TestCreateAssignsDefaults(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	c := newTestCampaign()
	c.Active = true
	c.Stats.Views.Total = 42

	created, err := store.Create(ctx, c)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Created.IsZero())
	assert.False(t, created.Active, "campaigns start inactive")
	assert.Empty(t, created.Logs)
	assert.Zero(t, created.Stats.Views.Total, "statistics start zeroed")
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	c := newTestCampaign()
	c.Members = []string{"alice", "bob"}
	c.Filters = []models.FilterCall{{Name: "countries", Data: []string{"DE", "FR"}}}

	created, err := store.Create(ctx, c)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created, got)
}

func TestGetByIDUnknownReturnsNilNil(t *testing.T) {
	store := NewInMemoryCampaignStore()
	got, err := store.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		c := newTestCampaign()
		c.Name = name
		_, err := store.Create(ctx, c)
		require.NoError(t, err)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, name := range names {
		assert.Equal(t, name, list[i].Name)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	active := true
	name := "renamed"
	updated, err := store.Update(ctx, created.ID, models.CampaignPatch{
		Active: &active,
		Name:   &name,
	})
	require.NoError(t, err)

	assert.True(t, updated.Active)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, created.Link, updated.Link)
	assert.Equal(t, created.Budget, updated.Budget)
}

func TestUpdateUnknownID(t *testing.T) {
	store := NewInMemoryCampaignStore()
	_, err := store.Update(context.Background(), "nope", models.CampaignPatch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.ErrorIs(t, store.Delete(ctx, created.ID), ErrNotFound)
}

func TestIncrementStatTracksGeo(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	_, err = store.IncrementStat(ctx, created.ID, models.EventView, "DE")
	require.NoError(t, err)
	_, err = store.IncrementStat(ctx, created.ID, models.EventView, "DE")
	require.NoError(t, err)
	_, err = store.IncrementStat(ctx, created.ID, models.EventView, "")
	require.NoError(t, err)
	updated, err := store.IncrementStat(ctx, created.ID, models.EventClick, "FR")
	require.NoError(t, err)

	assert.Equal(t, int64(3), updated.Stats.Views.Total)
	assert.Equal(t, int64(2), updated.Stats.Views.Geo["DE"])
	assert.NotContains(t, updated.Stats.Views.Geo, "")
	assert.Equal(t, int64(1), updated.Stats.Clicks.Total)
	assert.Equal(t, int64(1), updated.Stats.Clicks.Geo["FR"])
}

func TestResetStatsZeroesEverything(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	_, err = store.IncrementStat(ctx, created.ID, models.EventView, "DE")
	require.NoError(t, err)
	_, err = store.IncrementStat(ctx, created.ID, models.EventClick, "FR")
	require.NoError(t, err)

	updated, err := store.ResetStats(ctx, created.ID)
	require.NoError(t, err)

	assert.Zero(t, updated.Stats.Views.Total)
	assert.Zero(t, updated.Stats.Clicks.Total)
	assert.Nil(t, updated.Stats.Views.Geo)
	assert.Nil(t, updated.Stats.Clicks.Geo)
}

func TestAppendLogKeepsOrder(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	actions := []models.AuditAction{
		models.AuditToggle,
		models.AuditAddBudget,
		models.AuditUpdateValue,
		models.AuditClearStatistics,
	}
	var updated *models.Campaign
	for _, a := range actions {
		updated, err = store.AppendLog(ctx, created.ID, models.AuditEntry{Action: a, Who: "op"})
		require.NoError(t, err)
	}

	require.Len(t, updated.Logs, len(actions))
	for i, a := range actions {
		assert.Equal(t, a, updated.Logs[i].Action)
	}
}

func TestConcurrentDebitsLoseNoUpdates(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.DebitBudget(ctx, created.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(workers), got.Budget.Used)
}

func TestReturnedCampaignsAreIsolated(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestCampaign())
	require.NoError(t, err)

	created.Name = "mutated by caller"

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "test campaign", got.Name)
}
