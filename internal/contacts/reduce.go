package contacts

import (
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/probe"
)

// Reduce flattens a bulk match response into at most limit contacts. Entries
// without a verified, non-empty email are dropped before truncation.
func Reduce(bulkResponse any, limit int) []model.Contact {
	entries := probe.FirstArray(bulkResponse, bulkCollectionKeys...)
	out := make([]model.Contact, 0, min(len(entries), max(limit, 0)))
	for _, entry := range entries {
		if len(out) >= limit {
			break
		}
		if c, ok := reduceEntry(entry); ok {
			out = append(out, c)
		}
	}
	return out
}

func reduceEntry(entry any) (model.Contact, bool) {
	if probe.Object(entry) == nil {
		return model.Contact{}, false
	}

	chosen, ok := chooseEmail(entry)
	if !ok {
		return model.Contact{}, false
	}

	person := personOf(entry)
	org := probe.Object(probe.Object(person)["organization"])
	if org == nil {
		org = probe.Object(probe.Object(entry)["organization"])
	}

	status := statusOf(chosen)
	if status == "" {
		status = probe.String(entry, probe.P("email_status"))
	}

	return model.Contact{
		Name:        nameOf(person),
		Title:       probe.FirstString(person, probe.P("title"), probe.P("headline")),
		Email:       probe.String(chosen, probe.P("email")),
		Company:     firstNonEmpty(probe.String(org, probe.P("name")), probe.String(person, probe.P("organization_name"))),
		Domain:      firstNonEmpty(probe.FirstString(org, probe.P("website_url"), probe.P("domain")), probe.String(entry, probe.P("organization_domain"))),
		Location:    firstNonEmpty(probe.String(person, probe.P("location")), probe.String(entry, probe.P("location"))),
		EmailStatus: status,
	}, true
}

// emailCandidates assembles the ordered email list of an entry. A top-level
// email with its own status is trusted first and goes ahead of the arrays.
func emailCandidates(entry any) []any {
	var list []any

	email := probe.String(entry, probe.P("email"))
	status := probe.String(entry, probe.P("email_status"))
	if email != "" && status != "" {
		list = append(list, map[string]any{"email": email, "email_status": status})
	}

	person := personOf(entry)
	for _, src := range []struct {
		root any
		key  string
	}{
		{entry, "emails"},
		{person, "emails"},
		{person, "email_statuses"},
	} {
		if arr, ok := probe.Array(probe.Object(src.root)[src.key]); ok {
			list = append(list, arr...)
		}
	}
	return list
}

// chooseEmail returns the first candidate with a verified status and an
// address.
func chooseEmail(entry any) (any, bool) {
	for _, c := range emailCandidates(entry) {
		if probe.NormalizeStatus(statusOf(c)) != verifiedStatus {
			continue
		}
		if probe.String(c, probe.P("email")) == "" {
			continue
		}
		return c, true
	}
	return nil, false
}

func nameOf(person any) string {
	if name := probe.String(person, probe.P("name")); name != "" {
		return name
	}
	var parts []string
	for _, k := range []string{"first_name", "last_name"} {
		if s := probe.String(person, probe.P(k)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
