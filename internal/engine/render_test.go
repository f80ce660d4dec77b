package engine

import (
	"testing"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPreviewRender(t *testing.T) {
	c := &models.Campaign{
		ID:   "c1",
		Name: "fallback name",
		Link: "https://www.example.com/landing?ref=ad",
		Settings: models.DisplaySettings{
			Title:       "Big Sale",
			Description: "Everything must go",
			Color:       "#ff0000",
			Buttons:     []models.Button{{Label: "Shop", URL: "https://example.com/shop"}},
		},
	}

	m := PreviewRender(c)
	assert.Equal(t, "c1", m.CampaignID)
	assert.Equal(t, "Big Sale", m.Title)
	assert.Equal(t, "example.com", m.LinkDomain)
	assert.Len(t, m.Buttons, 1)
}

func TestPreviewRenderTitleFallsBackToName(t *testing.T) {
	c := &models.Campaign{Name: "campaign name", Link: "https://example.com"}
	m := PreviewRender(c)
	assert.Equal(t, "campaign name", m.Title)
}

func TestPreviewRenderUnparsableLink(t *testing.T) {
	c := &models.Campaign{Name: "n", Link: "::not a url"}
	m := PreviewRender(c)
	assert.Empty(t, m.LinkDomain)
	assert.Equal(t, "::not a url", m.Link)
}
