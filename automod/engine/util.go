package engine

import "strings"

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func dedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// Comma-separated role names, trimmed and lowercased, without duplicates.
func ParseRoleNames(raw string) []string {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			names = append(names, n)
		}
	}
	return dedupeStrings(names)
}
