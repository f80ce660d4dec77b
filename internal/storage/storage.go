package storage

import (
	"context"
	"errors"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/models"
)

var (
	// ErrNotFound is returned by mutating operations on unknown campaign
	// ids. Reads report a missing campaign as (nil, nil) instead.
	ErrNotFound = errors.New("campaign not found")

	// ErrUnavailable wraps transport failures that survived the retry, so
	// callers can degrade to a no-fill instead of surfacing an error.
	ErrUnavailable = errors.New("campaign store unavailable")
)

// CampaignStore is the durable home of campaign records. It is the single
// choke point for mutation: every write goes through it, keyed by id, and
// the counter operations below are applied as increments relative to the
// last stored value so two concurrent updates never lose one.
type CampaignStore interface {
	List(ctx context.Context) ([]*models.Campaign, error)
	GetByID(ctx context.Context, id string) (*models.Campaign, error)

	// Create assigns the id and creation timestamp and stores the campaign
	// inactive with zeroed statistics and an empty audit trail.
	Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error)

	// Update merges the patch into the stored campaign. Unset patch fields
	// are left untouched.
	Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error)

	Delete(ctx context.Context, id string) error

	// DebitBudget adds amount to budget.used. Usage is never clamped to the
	// ceiling; an event already served is already billed.
	DebitBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error)

	// AddBudget raises budget.total by amount.
	AddBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error)

	// IncrementStat raises the event's total by one and, when country is
	// non-empty, merges a +1 into the geo breakdown for that country.
	IncrementStat(ctx context.Context, id string, ev models.EventType, country string) (*models.Campaign, error)

	// ResetStats zeroes all four counters (view/click totals and geo maps)
	// in one update. It does not touch anything else on the campaign.
	ResetStats(ctx context.Context, id string) (*models.Campaign, error)

	// AppendLog appends one audit entry. The trail only ever grows.
	AppendLog(ctx context.Context, id string, entry models.AuditEntry) (*models.Campaign, error)
}

// ServeEvent is one append-only row in the serving event trail consumed by
// analytics dashboards. Delivery is best effort.
type ServeEvent struct {
	When         time.Time
	Event        models.EventType
	CampaignID   string
	CampaignName string
	Country      string
	ViewerID     string
}

// EventTrail records serving events. Implementations must not block the
// serving path for longer than a bounded insert.
type EventTrail interface {
	Record(ctx context.Context, ev ServeEvent) error
	Close() error
}

// NopEventTrail discards all events. Used when ClickHouse is not configured.
type NopEventTrail struct{}

func (NopEventTrail) Record(context.Context, ServeEvent) error { return nil }
func (NopEventTrail) Close() error                             { return nil }
