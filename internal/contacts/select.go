package contacts

import (
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/probe"
)

// Collection keys in priority order for each vendor response type.
var (
	searchCollectionKeys = []string{"people", "matches"}
	bulkCollectionKeys   = []string{"people", "matched_people"}
)

// linkedInKeys lists the profile URL fields a candidate may carry, in order.
var linkedInKeys = []string{"linkedin_url", "linked_in_url", "linkedin", "linkedin_profile_url"}

// SelectVerified returns, in input order, at most limit candidates from a
// search response that carry a verified email signal.
func SelectVerified(searchResponse any, limit int) []any {
	candidates := probe.FirstArray(searchResponse, searchCollectionKeys...)
	selected := make([]any, 0, min(len(candidates), max(limit, 0)))
	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		if IsVerified(c) {
			selected = append(selected, c)
		}
	}
	return selected
}

// personOf returns the nested "person" object of v, or v itself.
func personOf(v any) any {
	if p := probe.Object(probe.Object(v)["person"]); p != nil {
		return p
	}
	return v
}

// BuildDetail projects a candidate into the identity payload of the bulk
// match call.
func BuildDetail(candidate any) model.EnrichmentDetail {
	person := personOf(candidate)

	paths := make([]probe.Path, 0, 2*len(linkedInKeys))
	for _, k := range linkedInKeys {
		paths = append(paths, probe.P(k))
	}
	linkedIn := probe.FirstString(person, paths...)
	if linkedIn == "" {
		linkedIn = probe.FirstString(candidate, paths...)
	}

	return model.EnrichmentDetail{
		FirstName:   probe.String(person, probe.P("first_name")),
		LastName:    probe.String(person, probe.P("last_name")),
		LinkedInURL: linkedIn,
	}
}

// BuildDetails builds one detail per candidate and the parallel list of
// candidate ids. Candidates without an id contribute a detail but no id.
func BuildDetails(candidates []any) ([]model.EnrichmentDetail, []string) {
	details := make([]model.EnrichmentDetail, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		details = append(details, BuildDetail(c))
		if id := probe.FirstID(c, probe.P("id"), probe.P("person_id")); id != "" {
			ids = append(ids, id)
		}
	}
	return details, ids
}
