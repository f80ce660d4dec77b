package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/radiusdt/sponsor-engine/internal/storage"
)

// AuditLog appends operator actions to a campaign's immutable trail.
// Persistence failures propagate to the caller; an admin action whose audit
// entry cannot be written is reported as failed.
type AuditLog struct {
	store storage.CampaignStore
	now   func() time.Time
}

// NewAuditLog creates an audit log over the given store.
func NewAuditLog(store storage.CampaignStore) *AuditLog {
	return &AuditLog{store: store, now: time.Now}
}

// Append records one action with the current timestamp.
func (l *AuditLog) Append(ctx context.Context, campaignID string, action models.AuditAction, who, data string) (*models.Campaign, error) {
	entry := models.AuditEntry{
		Action: action,
		When:   l.now().UTC(),
		Who:    who,
		Data:   data,
	}
	updated, err := l.store.AppendLog(ctx, campaignID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return updated, nil
}
