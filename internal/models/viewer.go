package models

// Viewer is the request-side context a campaign's filters are evaluated
// against. Country is the resolved ISO 3166-1 alpha-2 code; it may be empty
// when geo resolution is disabled or the IP is unknown.
type Viewer struct {
	ID        string   `json:"id,omitempty"`
	IP        string   `json:"-"`
	Country   string   `json:"country,omitempty"`
	Language  string   `json:"language,omitempty"`
	GuildTags []string `json:"guild_tags,omitempty"`
}
