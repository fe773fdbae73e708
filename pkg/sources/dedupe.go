package sources

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizeURL returns the key used to detect duplicate sources: scheme and
// host lower-cased, fragment dropped, trailing slash trimmed.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.TrimRight(trimmed, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(u.String(), "/")
}

// Dedupe keeps one source per normalized URL, preferring the lowest priority.
// Ties keep the first occurrence. The result is sorted.
func Dedupe(in []Source) []Source {
	best := make(map[string]Source, len(in))
	order := make([]string, 0, len(in))

	for _, s := range in {
		key := NormalizeURL(s.URL)
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = s
			continue
		}
		if s.Priority < existing.Priority {
			best[key] = s
		}
	}

	out := make([]Source, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	Sort(out)
	return out
}

// Sort orders sources by priority, then URL.
func Sort(s []Source) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority < s[j].Priority
		}
		return s[i].URL < s[j].URL
	})
}

// SortByPriority orders sources by priority only, keeping the relative order
// of equal-priority sources.
func SortByPriority(s []Source) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Priority < s[j].Priority
	})
}

// Domain returns the lower-cased host of a URL, or "" if it has none.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
