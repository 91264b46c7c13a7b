package engine

import "testing"

func TestAggregateDeduplicatesByNormalizedURL(t *testing.T) {
	layers := [][]RawResult{
		{
			{URL: "https://Example.com/story/", Title: "first seen", OriginFreshness: FreshnessHour},
			{URL: "https://other.com/a", Title: "other"},
		},
		{
			{URL: "https://example.com/story", Title: "duplicate", OriginFreshness: FreshnessAll},
			{URL: "https://example.com/story#comments", Title: "fragment duplicate"},
		},
	}
	out := Aggregate(layers, 3)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique documents, got %v", out)
	}
	if out[0].Title != "first seen" {
		t.Fatalf("first occurrence must win, got %q", out[0].Title)
	}
	if out[0].OriginFreshness != FreshnessHour {
		t.Fatalf("winner keeps its origin layer, got %s", out[0].OriginFreshness)
	}
}

func TestAggregateCapsResultsPerHost(t *testing.T) {
	layers := [][]RawResult{{
		{URL: "https://bighost.com/1"},
		{URL: "https://bighost.com/2"},
		{URL: "https://bighost.com/3"},
		{URL: "https://bighost.com/4"},
		{URL: "https://smallhost.com/1"},
	}}
	out := Aggregate(layers, 3)
	if len(out) != 4 {
		t.Fatalf("expected 3 bighost + 1 smallhost, got %v", out)
	}
	count := 0
	for _, r := range out {
		if HostOf(r.URL) == "bighost.com" {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("host cap violated: %d bighost entries", count)
	}
}

func TestAggregateHostCapIgnoresHostlessURLs(t *testing.T) {
	layers := [][]RawResult{{
		{URL: "/relative/a"},
		{URL: "/relative/b"},
		{URL: "/relative/c"},
	}}
	out := Aggregate(layers, 1)
	if len(out) != 3 {
		t.Fatalf("hostless URLs must not consume a per-host budget, got %v", out)
	}
}

func TestAggregatePreservesLayerOrder(t *testing.T) {
	layers := [][]RawResult{
		{{URL: "https://a.com/1"}},
		nil,
		{{URL: "https://b.com/1"}, {URL: "https://c.com/1"}},
	}
	out := Aggregate(layers, 3)
	want := []string{"https://a.com/1", "https://b.com/1", "https://c.com/1"}
	for i, r := range out {
		if r.URL != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, r.URL, want[i])
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://Example.COM/News/", "https://example.com/News"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"https://example.com/a?page=2", "https://example.com/a?page=2"},
		{"https://example.com/", "https://example.com/"},
		{"example.com/path", "https://example.com/path"},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHostOf(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://news.example.com/story", "news.example.com"},
		{"http://Example.com:8080/x", "example.com"},
		{"example.com/path", "example.com"},
	}
	for _, tc := range cases {
		if got := HostOf(tc.in); got != tc.want {
			t.Errorf("HostOf(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
