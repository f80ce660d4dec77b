package models

// CampaignPatch carries partial changes for a campaign update. Nil fields
// are left untouched (merge semantics, not replace). The immutable fields
// ID and Created cannot be patched.
type CampaignPatch struct {
	Name     *string          `json:"name,omitempty"`
	Active   *bool            `json:"active,omitempty"`
	Link     *string          `json:"link,omitempty"`
	Members  *[]string        `json:"members,omitempty"`
	Filters  *[]FilterCall    `json:"filters,omitempty"`
	Settings *DisplaySettings `json:"settings,omitempty"`
	Budget   *BudgetPatch     `json:"budget,omitempty"`
}

// BudgetPatch carries partial budget changes.
type BudgetPatch struct {
	Total *float64    `json:"total,omitempty"`
	Used  *float64    `json:"used,omitempty"`
	Type  *BudgetType `json:"type,omitempty"`
	Cost  *float64    `json:"cost,omitempty"`
}

// Validate rejects patches that would leave the budget invalid.
func (p CampaignPatch) Validate() error {
	if p.Budget == nil {
		return nil
	}
	b := Budget{}
	if p.Budget.Total != nil {
		b.Total = *p.Budget.Total
	}
	if p.Budget.Used != nil {
		b.Used = *p.Budget.Used
	}
	if p.Budget.Cost != nil {
		b.Cost = *p.Budget.Cost
	}
	if p.Budget.Type != nil {
		b.Type = *p.Budget.Type
	}
	return b.Validate()
}

// Apply merges the patch into the campaign in place.
func (p CampaignPatch) Apply(c *Campaign) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Link != nil {
		c.Link = *p.Link
	}
	if p.Members != nil {
		c.Members = *p.Members
	}
	if p.Filters != nil {
		c.Filters = *p.Filters
	}
	if p.Settings != nil {
		c.Settings = *p.Settings
	}
	if p.Budget != nil {
		if p.Budget.Total != nil {
			c.Budget.Total = *p.Budget.Total
		}
		if p.Budget.Used != nil {
			c.Budget.Used = *p.Budget.Used
		}
		if p.Budget.Type != nil {
			c.Budget.Type = *p.Budget.Type
		}
		if p.Budget.Cost != nil {
			c.Budget.Cost = *p.Budget.Cost
		}
	}
}
