// Package strings holds small helpers for partner and country lists.
package strings

import "strings"

// DedupeLower trims and lowercases each value, dropping empties and
// repeats. First-seen order is kept; a nil or empty input is returned as is.
func DedupeLower(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
