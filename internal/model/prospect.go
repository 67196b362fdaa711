package model

import "encoding/json"

// Limit bounds for a single search.
const (
	MinLimit     = 1
	MaxLimit     = 10
	DefaultLimit = 10
)

// SearchCriteria is the validated input of one contact search.
type SearchCriteria struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit"`
}

// ClampLimit forces n into [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// EnrichmentDetail is the identity payload submitted to the bulk match
// endpoint for one selected candidate. Empty fields are omitted on the wire.
type EnrichmentDetail struct {
	FirstName   string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty" yaml:"linkedin_url,omitempty"`
}

// Contact is one resolved prospect with a verified email.
type Contact struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Email       string `json:"email" yaml:"email"`
	Company     string `json:"company" yaml:"company"`
	Domain      string `json:"domain" yaml:"domain"`
	Location    string `json:"location" yaml:"location"`
	EmailStatus string `json:"email_status" yaml:"email_status"`
}

// Debug carries the raw vendor responses and intermediate selections of a
// pipeline run. Enrichment is nil when no candidate was selected.
type Debug struct {
	Search            json.RawMessage    `json:"search"`
	Enrichment        json.RawMessage    `json:"enrichment"`
	SelectedPersonIDs []string           `json:"selectedPersonIds"`
	BulkDetails       []EnrichmentDetail `json:"bulkDetails"`
}

// PipelineResult is the successful output of a contact search.
type PipelineResult struct {
	Contacts []Contact `json:"contacts"`
	Debug    Debug     `json:"debug"`
}
