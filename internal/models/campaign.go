package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBudget is returned when a budget carries a negative total or
// cost. It is checked before any mutation is applied.
var ErrInvalidBudget = errors.New("invalid budget")

// BudgetType determines which serving event debits a campaign's budget.
// BudgetTypeNone means the campaign is never charged.
type BudgetType string

const (
	BudgetTypeClick BudgetType = "click"
	BudgetTypeView  BudgetType = "view"
	BudgetTypeNone  BudgetType = "none"
)

// EventType identifies a billable serving event.
type EventType string

const (
	EventView  EventType = "view"
	EventClick EventType = "click"
)

// Budget tracks the spend ceiling and cumulative usage for a campaign.
// Cost is CPM-style: the price of one thousand billed events.
type Budget struct {
	Total float64    `json:"total"`
	Used  float64    `json:"used"`
	Type  BudgetType `json:"type"`
	Cost  float64    `json:"cost"`
}

// Available reports whether the campaign may still be served. A budget
// exactly at the ceiling is still available; eligibility is checked before
// serving, not after, so the last event may overshoot by one event's cost.
func (b Budget) Available() bool {
	return b.Total >= b.Used
}

// Charges reports whether the given event type debits this budget.
func (b Budget) Charges(ev EventType) bool {
	return string(b.Type) == string(ev)
}

// EventCost returns the debit applied for a single billed event.
func (b Budget) EventCost() float64 {
	return b.Cost / 1000
}

// Validate rejects negative ceilings, usage or costs and unknown types.
func (b Budget) Validate() error {
	if b.Total < 0 {
		return fmt.Errorf("%w: total must be >= 0", ErrInvalidBudget)
	}
	if b.Used < 0 {
		return fmt.Errorf("%w: used must be >= 0", ErrInvalidBudget)
	}
	if b.Cost < 0 {
		return fmt.Errorf("%w: cost must be >= 0", ErrInvalidBudget)
	}
	switch b.Type {
	case BudgetTypeClick, BudgetTypeView, BudgetTypeNone, "":
		return nil
	default:
		return fmt.Errorf("%w: unknown budget type %q", ErrInvalidBudget, b.Type)
	}
}

// Counter holds a running total plus a per-country breakdown. Geo keys are
// inserted lazily the first time a country is seen.
type Counter struct {
	Total int64            `json:"total"`
	Geo   map[string]int64 `json:"geo,omitempty"`
}

// Statistics accumulates view and click counters for a campaign.
type Statistics struct {
	Views  Counter `json:"views"`
	Clicks Counter `json:"clicks"`
}

// FilterCall references a registered audience filter by name together with
// its filter-specific payload. Names that do not resolve to a registered
// filter are skipped during evaluation, they are not a hard failure.
type FilterCall struct {
	Name string   `json:"name"`
	Data []string `json:"data,omitempty"`
}

// AuditAction enumerates operator actions recorded on a campaign.
type AuditAction string

const (
	AuditUpdateValue     AuditAction = "updateValue"
	AuditAddBudget       AuditAction = "addBudget"
	AuditToggle          AuditAction = "toggle"
	AuditClearStatistics AuditAction = "clearStatistics"
)

// AuditEntry is one immutable record in a campaign's audit trail. Entries
// are only ever appended; they are never reordered, edited or trimmed.
type AuditEntry struct {
	Action AuditAction `json:"action"`
	When   time.Time   `json:"when"`
	Who    string      `json:"who"`
	Data   string      `json:"data,omitempty"`
}

// Button is an extra link rendered alongside the advertisement.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DisplaySettings is the presentation payload consumed by the renderer.
// The engine carries it but never interprets it.
type DisplaySettings struct {
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Color        string   `json:"color,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Buttons      []Button `json:"buttons,omitempty"`
}

// Campaign is one sponsored-content record: budget, targeting filters,
// display settings, statistics and the audit trail.
type Campaign struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Created  time.Time       `json:"created"`
	Active   bool            `json:"active"`
	Budget   Budget          `json:"budget"`
	Logs     []AuditEntry    `json:"logs"`
	Members  []string        `json:"members,omitempty"`
	Filters  []FilterCall    `json:"filters,omitempty"`
	Link     string          `json:"link"`
	Settings DisplaySettings `json:"settings"`
	Stats    Statistics      `json:"stats"`
}

// Validate checks the fields required before a campaign may be stored.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Link == "" {
		return errors.New("link is required")
	}
	return c.Budget.Validate()
}

// Clone returns a deep copy. Stored campaigns are cloned on the way in and
// out of the in-memory store so callers can never mutate shared state.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Logs != nil {
		cp.Logs = make([]AuditEntry, len(c.Logs))
		copy(cp.Logs, c.Logs)
	}
	if c.Members != nil {
		cp.Members = make([]string, len(c.Members))
		copy(cp.Members, c.Members)
	}
	if c.Filters != nil {
		cp.Filters = make([]FilterCall, len(c.Filters))
		for i, f := range c.Filters {
			cp.Filters[i] = f
			if f.Data != nil {
				cp.Filters[i].Data = make([]string, len(f.Data))
				copy(cp.Filters[i].Data, f.Data)
			}
		}
	}
	if c.Settings.Buttons != nil {
		cp.Settings.Buttons = make([]Button, len(c.Settings.Buttons))
		copy(cp.Settings.Buttons, c.Settings.Buttons)
	}
	cp.Stats.Views.Geo = cloneGeo(c.Stats.Views.Geo)
	cp.Stats.Clicks.Geo = cloneGeo(c.Stats.Clicks.Geo)
	return &cp
}

func cloneGeo(geo map[string]int64) map[string]int64 {
	if geo == nil {
		return nil
	}
	cp := make(map[string]int64, len(geo))
	for k, v := range geo {
		cp[k] = v
	}
	return cp
}
