package engine

import (
	"time"

	"github.com/mohammad-safakhou/seeker/models"
)

// Freshness restricts how recent search hits must be.
type Freshness string

const (
	FreshnessHour  Freshness = "hour"
	FreshnessDay   Freshness = "day"
	FreshnessWeek  Freshness = "week"
	FreshnessMonth Freshness = "month"
	FreshnessYear  Freshness = "year"
	FreshnessAll   Freshness = "all"
)

// ParseFreshness normalises a freshness label; unknown values fall back to all.
func ParseFreshness(s string) Freshness {
	switch Freshness(s) {
	case FreshnessHour, FreshnessDay, FreshnessWeek, FreshnessMonth, FreshnessYear:
		return Freshness(s)
	default:
		return FreshnessAll
	}
}

// Depth labels how wide the research fan-out should be.
type Depth string

const (
	DepthSurface  Depth = "surface"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
	DepthElite    Depth = "elite"
)

// ParseDepth normalises a depth label; unknown values fall back to standard.
func ParseDepth(s string) Depth {
	switch Depth(s) {
	case DepthSurface, DepthStandard, DepthDeep, DepthElite:
		return Depth(s)
	default:
		return DepthStandard
	}
}

// Request is one research question plus caller toggles.
type Request struct {
	Query        string               `json:"query"`
	History      []models.ChatMessage `json:"history,omitempty"`
	Deep         bool                 `json:"deep"`
	Search       bool                 `json:"search"`
	Thinking     bool                 `json:"thinking"`
	CustomPrompt string               `json:"custom_prompt,omitempty"`
	Queries      []string             `json:"queries,omitempty"`
}

// SearchPlan is the planner's strategy for one request. Immutable once built.
type SearchPlan struct {
	QueryPaths       []string  `json:"query_paths"`
	Freshness        Freshness `json:"freshness"`
	UseHourLayer     bool      `json:"use_hour_layer"`
	Depth            Depth     `json:"depth"`
	SkipSearch       bool      `json:"skip_search"`
	SuggestReasoning bool      `json:"suggest_reasoning"`
}

// SearchLayer is one concrete provider call: a query path at one freshness.
type SearchLayer struct {
	QueryPath string    `json:"query_path"`
	Freshness Freshness `json:"freshness"`
	Index     int       `json:"layer_index"`
}

// RawResult is a single deduplicated-candidate search hit. The freshness of
// the layer that produced it is kept for later scoring.
type RawResult struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Snippet         string    `json:"snippet"`
	Summary         string    `json:"summary,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
	OriginFreshness Freshness `json:"origin_freshness"`
}

// RankedDocument is a RawResult with its provider relevance and the
// engine-assigned composite score. RawResults are never mutated in place.
type RankedDocument struct {
	RawResult
	Relevance float64 `json:"relevance_score"`
	Composite float64 `json:"composite_score"`
}

// SynthesisRequest is the fully assembled grounding request for the
// chat-completion call. Built once, consumed exactly once.
type SynthesisRequest struct {
	Messages []models.ChatMessage    `json:"messages"`
	Params   models.CompletionParams `json:"params"`
	Grounded bool                    `json:"grounded"`
}

// AutoApplied marks modes the engine enabled beyond what the caller asked for.
type AutoApplied struct {
	Search    bool `json:"search"`
	Deep      bool `json:"deep"`
	Reasoning bool `json:"reasoning"`
}

// Result is the full orchestration outcome returned to the caller.
type Result struct {
	Answer        string           `json:"answer"`
	Sources       []RankedDocument `json:"sources"`
	AllSources    []RawResult      `json:"all_sources"`
	SearchQueries []string         `json:"search_queries"`
	AutoApplied   AutoApplied      `json:"auto_applied"`
	Plan          SearchPlan       `json:"plan"`
}
