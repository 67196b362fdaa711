// Package contacts resolves search criteria into a list of prospects with
// verified work emails by chaining a people search and a bulk match.
package contacts

import "github.com/sells-group/prospect-cli/internal/probe"

const verifiedStatus = "verified"

// statusKeys are the fields a vendor may report an email status under.
var statusKeys = []string{"email_status", "status"}

// IsVerified reports whether fragment carries a verified email signal. It
// looks at the fragment's own status fields, the same fields one level under
// "person" and "email", and every element of "emails" and "person.emails".
// Matching is exact after trimming and case folding.
func IsVerified(fragment any) bool {
	obj := probe.Object(fragment)
	if obj == nil {
		return false
	}

	holders := []any{obj, obj["person"], obj["email"]}
	for _, path := range []probe.Path{probe.P("emails"), probe.P("person", "emails")} {
		v, _ := probe.Get(obj, path)
		if arr, ok := probe.Array(v); ok {
			holders = append(holders, arr...)
		}
	}

	for _, h := range holders {
		if hasVerifiedStatus(h) {
			return true
		}
	}
	return false
}

// hasVerifiedStatus checks the direct status fields of a single object.
func hasVerifiedStatus(v any) bool {
	for _, k := range statusKeys {
		if probe.NormalizeStatus(probe.String(v, probe.P(k))) == verifiedStatus {
			return true
		}
	}
	return false
}

// statusOf returns the raw status of an email entry, preferring email_status.
func statusOf(v any) string {
	return probe.FirstString(v, probe.P("email_status"), probe.P("status"))
}
