package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/sponsor-engine/internal/models"
)

// InMemoryCampaignStore keeps campaigns in a map keyed by campaign id. A
// single mutex serializes every mutation, which gives the same lost-update
// guarantee the SQL increments provide in the Postgres store. Campaigns are
// deep-copied on the way in and out.
type InMemoryCampaignStore struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
	order     []string
}

// NewInMemoryCampaignStore creates an empty in-memory store.
func NewInMemoryCampaignStore() *InMemoryCampaignStore {
	return &InMemoryCampaignStore{campaigns: make(map[string]*models.Campaign)}
}

// List returns all campaigns in insertion order.
func (s *InMemoryCampaignStore) List(ctx context.Context) ([]*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.Campaign, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.campaigns[id]; ok {
			res = append(res, c.Clone())
		}
	}
	return res, nil
}

// GetByID returns the campaign or nil when unknown.
func (s *InMemoryCampaignStore) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.campaigns[id]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

// Create stores the campaign with a fresh id, the creation timestamp, the
// active flag cleared and statistics zeroed.
func (s *InMemoryCampaignStore) Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	cp := c.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Created.IsZero() {
		cp.Created = time.Now().UTC()
	}
	cp.Active = false
	cp.Logs = []models.AuditEntry{}
	cp.Stats = models.Statistics{}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[cp.ID] = cp
	s.order = append(s.order, cp.ID)
	return cp.Clone(), nil
}

// Update merges the patch into the stored campaign.
func (s *InMemoryCampaignStore) Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(c)
	return c.Clone(), nil
}

// Delete removes the campaign by id, never by index, so concurrent deletes
// cannot corrupt the working set.
func (s *InMemoryCampaignStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[id]; !ok {
		return ErrNotFound
	}
	delete(s.campaigns, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DebitBudget adds amount to the stored budget.used.
func (s *InMemoryCampaignStore) DebitBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Budget.Used += amount
	return c.Clone(), nil
}

// AddBudget raises the stored budget.total by amount.
func (s *InMemoryCampaignStore) AddBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Budget.Total += amount
	return c.Clone(), nil
}

// IncrementStat applies the +1 total and geo merge under the store lock.
func (s *InMemoryCampaignStore) IncrementStat(ctx context.Context, id string, ev models.EventType, country string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	counter := &c.Stats.Views
	if ev == models.EventClick {
		counter = &c.Stats.Clicks
	}
	counter.Total++
	if country != "" {
		if counter.Geo == nil {
			counter.Geo = make(map[string]int64)
		}
		counter.Geo[country]++
	}
	return c.Clone(), nil
}

// ResetStats zeroes both counters and their geo breakdowns.
func (s *InMemoryCampaignStore) ResetStats(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Stats = models.Statistics{}
	return c.Clone(), nil
}

// AppendLog appends the entry to the campaign's audit trail.
func (s *InMemoryCampaignStore) AppendLog(ctx context.Context, id string, entry models.AuditEntry) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Logs = append(c.Logs, entry)
	return c.Clone(), nil
}
