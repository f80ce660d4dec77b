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

func newTestAdmin(store storage.CampaignStore) *AdminService {
	logger := zap.NewNop()
	return NewAdminService(
		store,
		NewAuditLog(store),
		NewStatisticsTracker(store, nil, logger),
		nil,
		logger,
	)
}

func validCampaign() *models.Campaign {
	return &models.Campaign{
		Name:   "launch week",
		Link:   "https://example.com",
		Budget: models.Budget{Total: 100, Type: models.BudgetTypeView, Cost: 10},
	}
}

func TestCreateCampaignValidates(t *testing.T) {
	admin := newTestAdmin(storage.NewInMemoryCampaignStore())
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Active)

	_, err = admin.CreateCampaign(ctx, &models.Campaign{Link: "https://example.com"})
	require.Error(t, err)

	bad := validCampaign()
	bad.Budget.Total = -1
	_, err = admin.CreateCampaign(ctx, bad)
	require.ErrorIs(t, err, models.ErrInvalidBudget)
}

func TestSetActiveWritesToggleEntry(t *testing.T) {
	admin := newTestAdmin(storage.NewInMemoryCampaignStore())
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	updated, err := admin.SetActive(ctx, created.ID, true, "alice")
	require.NoError(t, err)
	assert.True(t, updated.Active)

	require.Len(t, updated.Logs, 1)
	entry := updated.Logs[0]
	assert.Equal(t, models.AuditToggle, entry.Action)
	assert.Equal(t, "alice", entry.Who)
	assert.Equal(t, "true", entry.Data)
	assert.False(t, entry.When.IsZero())
}

func TestAddBudget(t *testing.T) {
	admin := newTestAdmin(storage.NewInMemoryCampaignStore())
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	updated, err := admin.AddBudget(ctx, created.ID, 50, "bob")
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.Budget.Total)

	require.Len(t, updated.Logs, 1)
	assert.Equal(t, models.AuditAddBudget, updated.Logs[0].Action)
	assert.Equal(t, "50", updated.Logs[0].Data)
}

func TestAddBudgetRejectsNegativeBeforeMutation(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	admin := newTestAdmin(store)
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	_, err = admin.AddBudget(ctx, created.ID, -10, "bob")
	require.ErrorIs(t, err, models.ErrInvalidBudget)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Budget.Total)
	assert.Empty(t, got.Logs, "a rejected top-up leaves no audit entry")
}

func TestResetStatisticsWritesClearEntry(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	admin := newTestAdmin(store)
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)
	_, err = store.IncrementStat(ctx, created.ID, models.EventView, "DE")
	require.NoError(t, err)

	updated, err := admin.ResetStatistics(ctx, created.ID, "carol")
	require.NoError(t, err)
	assert.Zero(t, updated.Stats.Views.Total)
	require.Len(t, updated.Logs, 1)
	assert.Equal(t, models.AuditClearStatistics, updated.Logs[0].Action)
}

func TestAuditTrailGrowsInOrder(t *testing.T) {
	admin := newTestAdmin(storage.NewInMemoryCampaignStore())
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	_, err = admin.SetActive(ctx, created.ID, true, "op")
	require.NoError(t, err)
	_, err = admin.AddBudget(ctx, created.ID, 25, "op")
	require.NoError(t, err)
	name := "renamed"
	_, err = admin.UpdateCampaign(ctx, created.ID, models.CampaignPatch{Name: &name}, "op")
	require.NoError(t, err)
	updated, err := admin.ResetStatistics(ctx, created.ID, "op")
	require.NoError(t, err)

	want := []models.AuditAction{
		models.AuditToggle,
		models.AuditAddBudget,
		models.AuditUpdateValue,
		models.AuditClearStatistics,
	}
	require.Len(t, updated.Logs, len(want))
	for i, action := range want {
		assert.Equal(t, action, updated.Logs[i].Action)
	}
}

func TestUpdateCampaignRejectsInvalidPatch(t *testing.T) {
	admin := newTestAdmin(storage.NewInMemoryCampaignStore())
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	bad := -5.0
	_, err = admin.UpdateCampaign(ctx, created.ID, models.CampaignPatch{
		Budget: &models.BudgetPatch{Cost: &bad},
	}, "op")
	require.ErrorIs(t, err, models.ErrInvalidBudget)
}

func TestDeleteCampaign(t *testing.T) {
	store := storage.NewInMemoryCampaignStore()
	admin := newTestAdmin(store)
	ctx := context.Background()

	created, err := admin.CreateCampaign(ctx, validCampaign())
	require.NoError(t, err)

	require.NoError(t, admin.DeleteCampaign(ctx, created.ID))
	require.ErrorIs(t, admin.DeleteCampaign(ctx, created.ID), storage.ErrNotFound)
}
