package engine

import (
	"net/url"
	"strings"

	"github.com/radiusdt/sponsor-engine/internal/models"
)

// RenderModel is the render-ready projection of a campaign handed to
// presentation layers. It carries no accounting state.
type RenderModel struct {
	CampaignID   string          `json:"campaign_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Color        string          `json:"color,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Link         string          `json:"link"`
	LinkDomain   string          `json:"link_domain,omitempty"`
	Buttons      []models.Button `json:"buttons,omitempty"`
}

// PreviewRender projects a campaign into its render model. Pure: it reads
// the campaign and touches nothing. The title falls back to the campaign
// name when display settings leave it empty.
func PreviewRender(c *models.Campaign) *RenderModel {
	title := c.Settings.Title
	if title == "" {
		title = c.Name
	}

	m := &RenderModel{
		CampaignID:   c.ID,
		Title:        title,
		Description:  c.Settings.Description,
		Color:        c.Settings.Color,
		ImageURL:     c.Settings.ImageURL,
		ThumbnailURL: c.Settings.ThumbnailURL,
		Link:         c.Link,
		Buttons:      c.Settings.Buttons,
	}

	if u, err := url.Parse(c.Link); err == nil && u.Hostname() != "" {
		m.LinkDomain = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return m
}
