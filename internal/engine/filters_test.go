package engine

import (
	"testing"

	"github.com/radiusdt/sponsor-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEvaluateAllEmptyFilterListMatchesEveryone(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{}
	assert.True(t, reg.EvaluateAll(c, &models.Viewer{}))
	assert.True(t, reg.EvaluateAll(c, &models.Viewer{Country: "DE"}))
}

func TestEvaluateAllUnknownFilterIsSkipped(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{
		Filters: []models.FilterCall{{Name: "zodiac", Data: []string{"leo"}}},
	}
	assert.True(t, reg.EvaluateAll(c, &models.Viewer{}))
}

func TestEvaluateAllCombinesWithAnd(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{
		Filters: []models.FilterCall{
			{Name: "countries", Data: []string{"DE"}},
			{Name: "languages", Data: []string{"de"}},
		},
	}

	assert.True(t, reg.EvaluateAll(c, &models.Viewer{Country: "DE", Language: "de"}))
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{Country: "DE", Language: "en"}))
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{Country: "US", Language: "de"}))
}

func TestCountriesFilterFailsClosed(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{
		Filters: []models.FilterCall{{Name: "countries", Data: []string{"DE"}}},
	}

	// no resolved country means no match
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{}))
	assert.True(t, reg.EvaluateAll(c, &models.Viewer{Country: "DE"}))
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{Country: "FR"}))
}

func TestLanguagesFilterFailsClosed(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{
		Filters: []models.FilterCall{{Name: "languages", Data: []string{"en", "de"}}},
	}

	assert.False(t, reg.EvaluateAll(c, &models.Viewer{}))
	assert.True(t, reg.EvaluateAll(c, &models.Viewer{Language: "en"}))
}

func TestTagsFilterMatchesOnOverlap(t *testing.T) {
	reg := NewFilterRegistry(zap.NewNop())
	c := &models.Campaign{
		Filters: []models.FilterCall{{Name: "tags", Data: []string{"gaming", "music"}}},
	}

	assert.True(t, reg.EvaluateAll(c, &models.Viewer{GuildTags: []string{"music", "art"}}))
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{GuildTags: []string{"cooking"}}))
	assert.False(t, reg.EvaluateAll(c, &models.Viewer{}))
}
