package engine

import (
	"net/url"
	"strings"
)

// Aggregate flattens the per-layer results in layer order, keeping the first
// occurrence per normalized URL, then caps each hostname at maxPerHost
// entries so no single domain dominates the candidate pool before reranking.
func Aggregate(layers [][]RawResult, maxPerHost int) []RawResult {
	seenURL := make(map[string]struct{})
	hostCount := make(map[string]int)
	var out []RawResult

	for _, layer := range layers {
		for _, r := range layer {
			norm := NormalizeURL(r.URL)
			if norm == "" {
				continue
			}
			if _, dup := seenURL[norm]; dup {
				continue
			}
			host := HostOf(r.URL)
			if maxPerHost > 0 && host != "" && hostCount[host] >= maxPerHost {
				continue
			}
			seenURL[norm] = struct{}{}
			if host != "" {
				hostCount[host]++
			}
			out = append(out, r)
		}
	}
	return out
}

// NormalizeURL is the dedup key: lowercase scheme and host, fragment
// dropped, trailing path slash trimmed. The query string is preserved —
// distinct query strings are distinct documents.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Fragment = ""
	if u.Scheme == "" {
		u.Scheme = "https"
	} else {
		u.Scheme = strings.ToLower(u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

// HostOf extracts the lowercase hostname (no port) from a URL string.
func HostOf(raw string) string {
	if raw == "" {
		return ""
	}
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
