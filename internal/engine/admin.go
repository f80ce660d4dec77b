package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
	"go.uber.org/zap"
)

// AdminService is the operator-facing campaign surface. Every mutation it
// performs beyond creation and deletion leaves an entry in the campaign's
// audit trail, attributed to the operator who asked for it.
type AdminService struct {
	store   storage.CampaignStore
	audit   *AuditLog
	stats   *StatisticsTracker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAdminService creates the admin surface over the given store.
func NewAdminService(store storage.CampaignStore, audit *AuditLog, stats *StatisticsTracker, m *metrics.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{store: store, audit: audit, stats: stats, metrics: m, logger: logger}
}

// ListCampaigns returns every stored campaign.
func (s *AdminService) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	return s.store.List(ctx)
}

// GetCampaign returns one campaign, or nil when the id is unknown.
func (s *AdminService) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	return s.store.GetByID(ctx, id)
}

// CreateCampaign validates and stores a new campaign. The campaign starts
// inactive with zeroed statistics and an empty audit trail.
func (s *AdminService) CreateCampaign(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		zap.String("campaign_id", created.ID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// UpdateCampaign merges the patch into the campaign and records an
// updateValue audit entry naming the operator.
func (s *AdminService) UpdateCampaign(ctx context.Context, id string, patch models.CampaignPatch, operator string) (*models.Campaign, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}

	return s.audit.Append(ctx, id, models.AuditUpdateValue, operator, "")
}

// SetActive toggles serving for a campaign and records a toggle audit entry.
func (s *AdminService) SetActive(ctx context.Context, id string, active bool, operator string) (*models.Campaign, error) {
	patch := models.CampaignPatch{Active: &active}
	if _, err := s.store.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to toggle campaign: %w", err)
	}

	return s.audit.Append(ctx, id, models.AuditToggle, operator, strconv.FormatBool(active))
}

// AddBudget raises the campaign's budget ceiling and records an addBudget
// audit entry. Negative amounts are rejected before anything is touched.
func (s *AdminService) AddBudget(ctx context.Context, id string, amount float64, operator string) (*models.Campaign, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: top-up amount must be >= 0", models.ErrInvalidBudget)
	}

	updated, err := s.store.AddBudget(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to add budget: %w", err)
	}
	s.metrics.RecordRefill(updated.Name)

	return s.audit.Append(ctx, id, models.AuditAddBudget, operator, strconv.FormatFloat(amount, 'f', -1, 64))
}

// ResetStatistics zeroes the campaign's counters and records a
// clearStatistics audit entry.
func (s *AdminService) ResetStatistics(ctx context.Context, id string, operator string) (*models.Campaign, error) {
	if _, err := s.stats.Reset(ctx, id); err != nil {
		return nil, err
	}

	return s.audit.Append(ctx, id, models.AuditClearStatistics, operator, "")
}

// DeleteCampaign removes the campaign permanently, audit trail included.
func (s *AdminService) DeleteCampaign(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	s.logger.Info("campaign deleted", zap.String("campaign_id", id))
	return nil
}
