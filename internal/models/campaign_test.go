package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetAvailable(t *testing.T) {
	assert.True(t, Budget{Total: 100, Used: 50}.Available())
	// at the ceiling the campaign may still serve once more
	assert.True(t, Budget{Total: 100, Used: 100}.Available())
	assert.False(t, Budget{Total: 100, Used: 100.05}.Available())
	assert.True(t, Budget{}.Available())
}

func TestBudgetCharges(t *testing.T) {
	b := Budget{Type: BudgetTypeClick}
	assert.True(t, b.Charges(EventClick))
	assert.False(t, b.Charges(EventView))

	b.Type = BudgetTypeView
	assert.True(t, b.Charges(EventView))
	assert.False(t, b.Charges(EventClick))

	b.Type = BudgetTypeNone
	assert.False(t, b.Charges(EventView))
	assert.False(t, b.Charges(EventClick))
}

func TestBudgetEventCost(t *testing.T) {
	b := Budget{Cost: 50}
	assert.InDelta(t, 0.05, b.EventCost(), 1e-9)
}

func TestBudgetValidate(t *testing.T) {
	require.NoError(t, Budget{Total: 10, Cost: 5, Type: BudgetTypeView}.Validate())
	require.ErrorIs(t, Budget{Total: -1}.Validate(), ErrInvalidBudget)
	require.ErrorIs(t, Budget{Cost: -1}.Validate(), ErrInvalidBudget)
	require.ErrorIs(t, Budget{Type: "impressions"}.Validate(), ErrInvalidBudget)
}

func TestCampaignValidate(t *testing.T) {
	c := &Campaign{Name: "spring sale", Link: "https://example.com"}
	require.NoError(t, c.Validate())

	require.Error(t, (&Campaign{Link: "https://example.com"}).Validate())
	require.Error(t, (&Campaign{Name: "no link"}).Validate())
}

func TestCampaignCloneIsDeep(t *testing.T) {
	c := &Campaign{
		ID:      "c1",
		Name:    "original",
		Members: []string{"alice"},
		Filters: []FilterCall{{Name: "countries", Data: []string{"DE"}}},
		Logs:    []AuditEntry{{Action: AuditToggle, Who: "bob"}},
		Settings: DisplaySettings{
			Buttons: []Button{{Label: "go", URL: "https://example.com"}},
		},
		Stats: Statistics{
			Views: Counter{Total: 3, Geo: map[string]int64{"DE": 3}},
		},
	}

	cp := c.Clone()
	require.Equal(t, c, cp)

	cp.Members[0] = "mallory"
	cp.Filters[0].Data[0] = "US"
	cp.Logs[0].Who = "mallory"
	cp.Settings.Buttons[0].Label = "stop"
	cp.Stats.Views.Geo["DE"] = 99

	assert.Equal(t, "alice", c.Members[0])
	assert.Equal(t, "DE", c.Filters[0].Data[0])
	assert.Equal(t, "bob", c.Logs[0].Who)
	assert.Equal(t, "go", c.Settings.Buttons[0].Label)
	assert.Equal(t, int64(3), c.Stats.Views.Geo["DE"])
}

func TestPatchApplyMergesOnlySetFields(t *testing.T) {
	c := &Campaign{
		Name:   "before",
		Active: true,
		Link:   "https://before.example",
		Budget: Budget{Total: 100, Used: 10, Type: BudgetTypeView, Cost: 20},
	}

	name := "after"
	total := 250.0
	patch := CampaignPatch{
		Name:   &name,
		Budget: &BudgetPatch{Total: &total},
	}
	patch.Apply(c)

	assert.Equal(t, "after", c.Name)
	assert.True(t, c.Active)
	assert.Equal(t, "https://before.example", c.Link)
	assert.Equal(t, 250.0, c.Budget.Total)
	assert.Equal(t, 10.0, c.Budget.Used)
	assert.Equal(t, BudgetTypeView, c.Budget.Type)
}

func TestPatchValidateRejectsBadBudget(t *testing.T) {
	bad := -5.0
	patch := CampaignPatch{Budget: &BudgetPatch{Total: &bad}}
	require.ErrorIs(t, patch.Validate(), ErrInvalidBudget)
}
