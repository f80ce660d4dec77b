package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/sponsor-engine/internal/models"
)

const campaignCols = `id, name, created, active, link, members, filters, settings, logs,
	budget_total, budget_used, budget_type, budget_cost,
	views_total, views_geo, clicks_total, clicks_geo`

const campaignSchema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	created      TIMESTAMPTZ NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT FALSE,
	link         TEXT NOT NULL,
	members      TEXT[] NOT NULL DEFAULT '{}',
	filters      JSONB,
	settings     JSONB NOT NULL DEFAULT '{}',
	logs         JSONB NOT NULL DEFAULT '[]',
	budget_total DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget_used  DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget_type  TEXT NOT NULL DEFAULT 'none',
	budget_cost  DOUBLE PRECISION NOT NULL DEFAULT 0,
	views_total  BIGINT NOT NULL DEFAULT 0,
	views_geo    JSONB NOT NULL DEFAULT '{}',
	clicks_total BIGINT NOT NULL DEFAULT 0,
	clicks_geo   JSONB NOT NULL DEFAULT '{}'
)`

// PostgresCampaignStore implements CampaignStore using PostgreSQL. Counter
// updates run as relative increments inside single UPDATE statements, so
// concurrent debits and statistics merges cannot overwrite each other with
// a stale snapshot. Every call is bounded by a timeout and retried once on
// transient failure.
type PostgresCampaignStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresCampaignStore creates a Postgres-backed store. opTimeout bounds
// each statement, including the single retry.
func NewPostgresCampaignStore(pool *pgxpool.Pool, opTimeout time.Duration) *PostgresCampaignStore {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &PostgresCampaignStore{pool: pool, timeout: opTimeout}
}

// EnsureSchema creates the campaigns table when it does not exist yet.
func (s *PostgresCampaignStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, campaignSchema)
	if err != nil {
		return fmt.Errorf("failed to ensure campaign schema: %w", err)
	}
	return nil
}

// do runs op with a per-attempt timeout and one retry on transient errors.
func (s *PostgresCampaignStore) do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return op(opCtx)
	}
	err := attempt()
	if err == nil || !isTransient(err) {
		return err
	}
	if err = attempt(); err != nil && isTransient(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// isTransient reports whether the error looks like a connectivity problem
// worth a single retry, as opposed to a permanent statement failure.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

func (s *PostgresCampaignStore) List(ctx context.Context) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := s.do(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT `+campaignCols+` FROM campaigns ORDER BY created`)
		if err != nil {
			return fmt.Errorf("failed to list campaigns: %w", err)
		}
		defer rows.Close()

		campaigns = campaigns[:0]
		for rows.Next() {
			c, err := scanCampaign(rows)
			if err != nil {
				return err
			}
			campaigns = append(campaigns, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *PostgresCampaignStore) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	var c *models.Campaign
	err := s.do(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id)
		got, err := scanCampaign(row)
		if errors.Is(err, pgx.ErrNoRows) {
			c = nil
			return nil
		}
		if err != nil {
			return err
		}
		c = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresCampaignStore) Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
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

	filtersJSON, err := marshalNullable(cp.Filters)
	if err != nil {
		return nil, err
	}
	settingsJSON, err := json.Marshal(cp.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	members := cp.Members
	if members == nil {
		members = []string{}
	}

	err = s.do(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO campaigns (id, name, created, active, link, members, filters, settings,
				budget_total, budget_used, budget_type, budget_cost)
			VALUES ($1, $2, $3, FALSE, $4, $5, $6, $7, $8, $9, $10, $11)
		`, cp.ID, cp.Name, cp.Created, cp.Link, members, filtersJSON, settingsJSON,
			cp.Budget.Total, cp.Budget.Used, budgetType(cp.Budget.Type), cp.Budget.Cost)
		if err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *PostgresCampaignStore) Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error) {
	var updated *models.Campaign
	err := s.do(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = $1 FOR UPDATE`, id)
		c, err := scanCampaign(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		patch.Apply(c)

		filtersJSON, err := marshalNullable(c.Filters)
		if err != nil {
			return err
		}
		settingsJSON, err := json.Marshal(c.Settings)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		members := c.Members
		if members == nil {
			members = []string{}
		}

		_, err = tx.Exec(ctx, `
			UPDATE campaigns SET name = $2, active = $3, link = $4, members = $5,
				filters = $6, settings = $7,
				budget_total = $8, budget_used = $9, budget_type = $10, budget_cost = $11
			WHERE id = $1
		`, id, c.Name, c.Active, c.Link, members, filtersJSON, settingsJSON,
			c.Budget.Total, c.Budget.Used, budgetType(c.Budget.Type), c.Budget.Cost)
		if err != nil {
			return fmt.Errorf("failed to update campaign: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit update: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresCampaignStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresCampaignStore) DebitBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	return s.updateReturning(ctx, `
		UPDATE campaigns SET budget_used = budget_used + $2
		WHERE id = $1 RETURNING `+campaignCols, id, amount)
}

func (s *PostgresCampaignStore) AddBudget(ctx context.Context, id string, amount float64) (*models.Campaign, error) {
	return s.updateReturning(ctx, `
		UPDATE campaigns SET budget_total = budget_total + $2
		WHERE id = $1 RETURNING `+campaignCols, id, amount)
}

func (s *PostgresCampaignStore) IncrementStat(ctx context.Context, id string, ev models.EventType, country string) (*models.Campaign, error) {
	col := "views"
	if ev == models.EventClick {
		col = "clicks"
	}
	// The geo merge happens inside the statement against the stored value,
	// never against a snapshot carried over from the caller.
	query := fmt.Sprintf(`
		UPDATE campaigns SET
			%[1]s_total = %[1]s_total + 1,
			%[1]s_geo = CASE WHEN $2 = '' THEN %[1]s_geo
				ELSE jsonb_set(%[1]s_geo, ARRAY[$2::text],
					to_jsonb(COALESCE((%[1]s_geo->>$2)::bigint, 0) + 1))
			END
		WHERE id = $1 RETURNING `+campaignCols, col)
	return s.updateReturning(ctx, query, id, country)
}

func (s *PostgresCampaignStore) ResetStats(ctx context.Context, id string) (*models.Campaign, error) {
	return s.updateReturning(ctx, `
		UPDATE campaigns SET views_total = 0, views_geo = '{}'::jsonb,
			clicks_total = 0, clicks_geo = '{}'::jsonb
		WHERE id = $1 RETURNING `+campaignCols, id)
}

func (s *PostgresCampaignStore) AppendLog(ctx context.Context, id string, entry models.AuditEntry) (*models.Campaign, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit entry: %w", err)
	}
	return s.updateReturning(ctx, `
		UPDATE campaigns SET logs = logs || $2::jsonb
		WHERE id = $1 RETURNING `+campaignCols, id, entryJSON)
}

// updateReturning runs a single-row UPDATE ... RETURNING and scans the
// updated campaign. No rows means the id is unknown.
func (s *PostgresCampaignStore) updateReturning(ctx context.Context, query string, args ...any) (*models.Campaign, error) {
	var c *models.Campaign
	err := s.do(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, query, args...)
		got, err := scanCampaign(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var (
		c            models.Campaign
		bType        string
		filtersJSON  []byte
		settingsJSON []byte
		logsJSON     []byte
		viewsGeo     []byte
		clicksGeo    []byte
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Created, &c.Active, &c.Link, &c.Members,
		&filtersJSON, &settingsJSON, &logsJSON,
		&c.Budget.Total, &c.Budget.Used, &bType, &c.Budget.Cost,
		&c.Stats.Views.Total, &viewsGeo, &c.Stats.Clicks.Total, &clicksGeo,
	)
	if err != nil {
		return nil, err
	}
	c.Budget.Type = models.BudgetType(bType)
	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &c.Filters); err != nil {
			return nil, fmt.Errorf("failed to parse filters: %w", err)
		}
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &c.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &c.Logs); err != nil {
			return nil, fmt.Errorf("failed to parse audit trail: %w", err)
		}
	}
	if err := unmarshalGeo(viewsGeo, &c.Stats.Views.Geo); err != nil {
		return nil, err
	}
	if err := unmarshalGeo(clicksGeo, &c.Stats.Clicks.Geo); err != nil {
		return nil, err
	}
	return &c, nil
}

func unmarshalGeo(data []byte, geo *map[string]int64) error {
	if len(data) == 0 || string(data) == "{}" {
		return nil
	}
	if err := json.Unmarshal(data, geo); err != nil {
		return fmt.Errorf("failed to parse geo breakdown: %w", err)
	}
	return nil
}

func marshalNullable(filters []models.FilterCall) ([]byte, error) {
	if filters == nil {
		return nil, nil
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}
	return data, nil
}

func budgetType(t models.BudgetType) string {
	if t == "" {
		return string(models.BudgetTypeNone)
	}
	return string(t)
}
