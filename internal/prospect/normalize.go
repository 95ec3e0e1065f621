package prospect

import "strings"

// NormalizeKeyword lowercases, trims, and collapses internal whitespace to
// single spaces. It is the pool's primary key and must be applied before
// every membership test or map lookup.
func NormalizeKeyword(keyword string) string {
	fields := strings.Fields(strings.ToLower(keyword))
	return strings.Join(fields, " ")
}

// NormalizeKeywords normalizes every entry, dropping any that normalize to
// the empty string.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if n := NormalizeKeyword(k); n != "" {
			out = append(out, n)
		}
	}
	return out
}
