package graph

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	keyCharRe    = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// sanitizeKey reduces a display name to [A-Za-z0-9_]: trim, collapse
// whitespace runs to a single underscore, strip everything else. An empty
// result falls through to the (already safe) fallback; a fallback that also
// sanitizes to nothing yields the empty string, which callers must handle.
func sanitizeKey(value, fallback string) string {
	v := strings.TrimSpace(value)
	v = whitespaceRe.ReplaceAllString(v, "_")
	v = keyCharRe.ReplaceAllString(v, "")
	if v == "" {
		if fallback == "" {
			return ""
		}
		return sanitizeKey(fallback, "")
	}
	return v
}

// stringField safely extracts a string from a map value.
func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// mapField safely extracts a map[string]any from a map.
func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// sliceField safely extracts a []any from a map.
func sliceField(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// toNumber coerces numeric-ish values to a float64, mirroring how a
// JSON-sourced document represents numbers. Unparseable values yield nil.
func toNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// numberString formats a node id for key fallbacks: integral floats print
// without a decimal point, a nil id prints as the empty string.
func numberString(id *float64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatFloat(*id, 'f', -1, 64)
}
