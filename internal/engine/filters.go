package engine

import (
	"github.com/radiusdt/sponsor-engine/internal/models"
	"go.uber.org/zap"
)

// FilterFunc decides whether a viewer matches one filter's payload.
type FilterFunc func(viewer *models.Viewer, data []string) bool

// FilterRegistry resolves filter names to predicates. The set of filters is
// closed and fixed at construction; campaigns reference them by name only.
type FilterRegistry struct {
	filters map[string]FilterFunc
	logger  *zap.Logger
}

// NewFilterRegistry builds the registry with the built-in audience filters.
func NewFilterRegistry(logger *zap.Logger) *FilterRegistry {
	return &FilterRegistry{
		filters: map[string]FilterFunc{
			"countries": filterCountries,
			"tags":      filterTags,
			"languages": filterLanguages,
		},
		logger: logger,
	}
}

// EvaluateAll reports whether the viewer passes every filter attached to the
// campaign. An empty filter list matches everyone. Filters combine with AND
// and evaluation stops at the first miss. Names that do not resolve to a
// registered filter are skipped rather than failing the campaign.
func (r *FilterRegistry) EvaluateAll(c *models.Campaign, viewer *models.Viewer) bool {
	for _, call := range c.Filters {
		fn, ok := r.filters[call.Name]
		if !ok {
			r.logger.Debug("skipping unknown filter",
				zap.String("filter", call.Name),
				zap.String("campaign_id", c.ID),
			)
			continue
		}
		if !fn(viewer, call.Data) {
			return false
		}
	}
	return true
}

// filterCountries matches viewers whose resolved country is in the payload.
// A viewer with no resolved country never matches.
func filterCountries(viewer *models.Viewer, data []string) bool {
	if viewer.Country == "" {
		return false
	}
	return contains(data, viewer.Country)
}

// filterLanguages matches on the viewer's language. No language, no match.
func filterLanguages(viewer *models.Viewer, data []string) bool {
	if viewer.Language == "" {
		return false
	}
	return contains(data, viewer.Language)
}

// filterTags matches when the viewer's guild tags and the payload share at
// least one tag.
func filterTags(viewer *models.Viewer, data []string) bool {
	for _, tag := range viewer.GuildTags {
		if contains(data, tag) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
