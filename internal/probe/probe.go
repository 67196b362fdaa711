// Package probe reads loosely-shaped vendor JSON decoded into any.
//
// Vendors return the same fact under several keys and nesting levels. Callers
// describe where to look as an ordered list of paths and take the first
// usable value. Every function is pure and degrades to a zero value on
// unexpected shapes.
package probe

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Path is a sequence of object keys walked from a root value.
type Path []string

// P builds a Path from keys.
func P(keys ...string) Path {
	return Path(keys)
}

// Object returns v as a JSON object, or nil when v is anything else.
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Array returns v as a JSON array.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Get walks path from v. It reports false when any step is not an object or
// the key is missing.
func Get(v any, path Path) (any, bool) {
	cur := v
	for _, key := range path {
		m := Object(cur)
		if m == nil {
			return nil, false
		}
		next, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// String returns the string at path, or "" when absent or not a string.
func String(v any, path Path) string {
	got, ok := Get(v, path)
	if !ok {
		return ""
	}
	s, _ := got.(string)
	return s
}

// FirstString returns the first non-empty string found along paths.
func FirstString(v any, paths ...Path) string {
	for _, p := range paths {
		if s := String(v, p); s != "" {
			return s
		}
	}
	return ""
}

// ID returns the identifier at path as a string. Vendors send ids as either
// strings or numbers; numbers are rendered without exponent.
func ID(v any, path Path) string {
	got, ok := Get(v, path)
	if !ok {
		return ""
	}
	switch id := got.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// FirstID returns the first non-empty identifier found along paths.
func FirstID(v any, paths ...Path) string {
	for _, p := range paths {
		if id := ID(v, p); id != "" {
			return id
		}
	}
	return ""
}

// FirstArray resolves a collection by key priority: the first key of v
// holding an array wins. It returns nil when no key holds an array.
func FirstArray(v any, keys ...string) []any {
	m := Object(v)
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if a, ok := Array(m[k]); ok {
			return a
		}
	}
	return nil
}

// NormalizeStatus trims s and applies Unicode case folding.
func NormalizeStatus(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
