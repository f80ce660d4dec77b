package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	campaignKeyPrefix = "campaign:"
	campaignListKey   = "campaigns:all"
)

// CampaignCache is a Redis-backed read cache keyed by campaign id, with an
// additional short-lived entry for the full candidate list. The store owns
// the canonical copy; the cache is only ever written on the store's write
// path, so a cached campaign may be briefly stale but never diverges.
// Cache failures are logged and ignored (fail open).
type CampaignCache struct {
	client  *redis.Client
	ttl     time.Duration
	listTTL time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCampaignCache creates a cache with the given per-entry TTLs.
func NewCampaignCache(client *redis.Client, ttl, listTTL time.Duration, logger *zap.Logger, m *metrics.Metrics) *CampaignCache {
	return &CampaignCache{client: client, ttl: ttl, listTTL: listTTL, logger: logger, metrics: m}
}

func (c *CampaignCache) get(ctx context.Context, id string) (*models.Campaign, bool) {
	data, err := c.client.Get(ctx, campaignKeyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("campaign cache read failed", zap.Error(err))
		}
		c.metrics.RecordCacheRequest("miss")
		return nil, false
	}
	var campaign models.Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		c.metrics.RecordCacheRequest("miss")
		return nil, false
	}
	c.metrics.RecordCacheRequest("hit")
	return &campaign, true
}

func (c *CampaignCache) set(ctx context.Context, campaign *models.Campaign) {
	data, err := json.Marshal(campaign)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, campaignKeyPrefix+campaign.ID, data, c.ttl).Err(); err != nil {
		c.logger.Debug("campaign cache write failed", zap.Error(err))
	}
}

func (c *CampaignCache) getList(ctx context.Context) ([]*models.Campaign, bool) {
	data, err := c.client.Get(ctx, campaignListKey).Bytes()
	if err != nil {
		c.metrics.RecordCacheRequest("list_miss")
		return nil, false
	}
	var campaigns []*models.Campaign
	if err := json.Unmarshal(data, &campaigns); err != nil {
		c.metrics.RecordCacheRequest("list_miss")
		return nil, false
	}
	c.metrics.RecordCacheRequest("list_hit")
	return campaigns, true
}

func (c *CampaignCache) setList(ctx context.Context, campaigns []*models.Campaign) {
	data, err := json.Marshal(campaigns)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, campaignListKey, data, c.listTTL).Err(); err != nil {
		c.logger.Debug("campaign list cache write failed", zap.Error(err))
	}
}

func (c *CampaignCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, campaignKeyPrefix+id, campaignListKey).Err(); err != nil {
		c.logger.Debug("campaign cache invalidation failed", zap.Error(err))
	}
}

// CachedCampaignStore decorates a CampaignStore with the cache-aside layer.
// Reads consult the cache first; every write delegates to the underlying
// store and then refreshes or drops the cached copy.
type CachedCampaignStore struct {
	store CampaignStore
	cache *CampaignCache
}

// NewCachedCampaignStore wraps the store with the cache.
func NewCachedCampaignStore(store CampaignStore, cache *CampaignCache) *CachedCampaignStore {
	return &CachedCampaignStore{store: store, cache: cache}
}

func (s *CachedCampaignStore) List(ctx context.Context) ([]*models.Campaign, error) {
	if campaigns, ok := s.cache.getList(ctx); ok {
		return campaigns, nil
	}
	campaigns, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.setList(ctx, campaigns)
	return campaigns, nil
}

func (s *CachedCampaignStore) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	if c, ok := s.cache.get(ctx, id); ok {
		return c, nil
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil || c == nil {
		return c, err
	}
	s.cache.set(ctx, c)
	return c, nil
}

func (s *CachedCampaignStore) Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, created.ID)
	s.cache.set(ctx, created)
	return created, nil
}

func (s *CachedCampaignStore) Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.Update(ctx, id, patch)
	})
}

func (s *CachedCampaignStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.invalidate(ctx, id)
	return nil
}

func (s *CachedCampaignStore) DebitBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.DebitBudget(ctx, id, amount)
	})
}

func (s *CachedCampaignStore) AddBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.AddBudget(ctx, id, amount)
	})
}

func (s *CachedCampaignStore) IncrementStat(ctx context.Context, id string, ev models.EventType, country string) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.IncrementStat(ctx, id, ev, country)
	})
}

func (s *CachedCampaignStore) ResetStats(ctx context.Context, id string) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.ResetStats(ctx, id)
	})
}

func (s *CachedCampaignStore) AppendLog(ctx context.Context, id string, entry models.AuditEntry) (*models.Campaign, error) {
	return s.refresh(ctx, id, func() (*models.Campaign, error) {
		return s.store.AppendLog(ctx, id, entry)
	})
}

func (s *CachedCampaignStore) refresh(ctx context.Context, id string, op func() (*models.Campaign, error)) (*models.Campaign, error) {
	updated, err := op()
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, id)
	s.cache.set(ctx, updated)
	return updated, nil
}
