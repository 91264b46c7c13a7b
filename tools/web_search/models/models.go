package models

import "time"

// Result is a single web-search hit as returned by a provider.
type Result struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Snippet       string    `json:"snippet"`
	Summary       string    `json:"summary,omitempty"`
	DatePublished time.Time `json:"date_published,omitempty"`
}

// Scored pairs a document index with the provider-assigned relevance score.
type Scored struct {
	Index     int     `json:"index"`
	Relevance float64 `json:"relevance_score"`
}

// Options bounds a single search call.
type Options struct {
	Freshness string // hour, day, week, month, year, all
	Count     int
}
