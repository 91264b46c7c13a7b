package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/internal/telemetry"
	web_search "github.com/mohammad-safakhou/seeker/tools/web_search"
)

// Reranker produces a total order over the aggregated candidates: provider
// semantic relevance fused with domain-reputation, freshness and recency
// boosts. Chunks are scored concurrently; a failed chunk degrades to
// boost-only ordering instead of failing the request.
type Reranker struct {
	cfg       *config.Config
	searcher  web_search.WebSearcher
	pool      *Pool
	rotator   *Rotator
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	now       func() time.Time
}

func NewReranker(cfg *config.Config, searcher web_search.WebSearcher, pool *Pool, rotator *Rotator, tele *telemetry.Telemetry) *Reranker {
	return &Reranker{
		cfg:       cfg,
		searcher:  searcher,
		pool:      pool,
		rotator:   rotator,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[RERANK] ", log.LstdFlags),
		now:       time.Now,
	}
}

// Rerank scores docs against query and returns them sorted by composite
// score descending; ties keep the original aggregation order.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []RawResult) []RankedDocument {
	ranked := make([]RankedDocument, len(docs))
	for i, d := range docs {
		ranked[i] = RankedDocument{RawResult: d}
	}
	if len(ranked) == 0 {
		return ranked
	}

	chunkSize := r.cfg.Engine.RerankChunkSize
	var wg sync.WaitGroup
	for start := 0; start < len(ranked); start += chunkSize {
		end := start + chunkSize
		if end > len(ranked) {
			end = len(ranked)
		}
		wg.Add(1)
		go func(chunkIdx, start, end int) {
			defer wg.Done()
			r.scoreChunk(ctx, chunkIdx, query, ranked[start:end])
		}(start/chunkSize, start, end)
	}
	wg.Wait()

	boosts := r.cfg.Engine
	for i := range ranked {
		ranked[i].Composite = ranked[i].Relevance + r.boost(ranked[i].RawResult, boosts)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Composite > ranked[j].Composite
	})
	return ranked
}

// scoreChunk fills Relevance for one chunk in place. On failure the chunk
// keeps zero relevance, or a local lexical estimate when the fallback is
// enabled.
func (r *Reranker) scoreChunk(ctx context.Context, chunkIdx int, query string, chunk []RankedDocument) {
	documents := make([]string, len(chunk))
	for i, d := range chunk {
		documents[i] = SanitizeContent(d.Title + " " + firstNonEmpty(d.Summary, d.Snippet))
	}

	scored, err := r.rerankCall(ctx, chunkIdx, query, documents)
	if err != nil {
		r.telemetry.RecordRerankChunk(false)
		r.logger.Printf("chunk %d rerank failed, degrading to boost-only ordering: %v", chunkIdx, err)
		if r.cfg.Engine.LocalRerankFallback {
			r.localScore(query, documents, chunk)
		}
		return
	}
	r.telemetry.RecordRerankChunk(true)
	for _, s := range scored {
		if s.Index >= 0 && s.Index < len(chunk) {
			chunk[s.Index].Relevance = s.Relevance
		}
	}
}

func (r *Reranker) rerankCall(ctx context.Context, chunkIdx int, query string, documents []string) ([]scoredIndex, error) {
	var out []scoredIndex
	err := r.rotator.Execute(ctx, r.pool, chunkIdx, func(ctx context.Context, apiKey string) error {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Search.Timeout)
		defer cancel()
		scored, err := r.searcher.Rerank(callCtx, apiKey, query, documents)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, s := range scored {
			out = append(out, scoredIndex{Index: s.Index, Relevance: s.Relevance})
		}
		return nil
	})
	return out, err
}

type scoredIndex struct {
	Index     int
	Relevance float64
}

// boost is the additive, configuration-declared score on top of provider
// relevance: domain reputation (longest suffix match), origin freshness and
// publish recency.
func (r *Reranker) boost(doc RawResult, cfg config.EngineConfig) float64 {
	b := DomainBoost(HostOf(doc.URL), cfg.DomainBoosts)
	switch doc.OriginFreshness {
	case FreshnessHour:
		b += cfg.HourBoost
	case FreshnessDay:
		b += cfg.DayBoost
	}
	if !doc.PublishedAt.IsZero() && r.now().Sub(doc.PublishedAt) <= cfg.RecencyWindow {
		b += cfg.RecencyBoost
	}
	return b
}

// DomainBoost resolves the reputation weight for host by longest-suffix
// match against the table; unknown hosts get 0.
func DomainBoost(host string, table map[string]float64) float64 {
	if host == "" || len(table) == 0 {
		return 0
	}
	best := ""
	for suffix := range table {
		if host != suffix && !strings.HasSuffix(host, "."+suffix) {
			continue
		}
		if len(suffix) > len(best) {
			best = suffix
		}
	}
	if best == "" {
		return 0
	}
	return table[best]
}

// boilerplatePhrases are stripped from document text before it is sent to
// the rerank endpoint; they carry no relevance signal and waste the budget.
var boilerplatePhrases = []string{
	"click here", "read more", "learn more", "sign up", "subscribe now",
	"subscribe to", "accept cookies", "cookie policy", "privacy policy",
	"all rights reserved", "terms of service", "advertisement",
	"share this article", "follow us",
}

const maxContentRunes = 512

// SanitizeContent strips boilerplate phrases, collapses whitespace and
// truncates the text before transmission to the rerank endpoint. The phrase
// scan works on rune slices: lowercasing maps rune to rune but can change
// byte length, so byte offsets from a lowered copy must never slice the
// original string.
func SanitizeContent(s string) string {
	runes := []rune(s)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	for _, phrase := range boilerplatePhrases {
		p := []rune(phrase)
		for {
			i := runeIndex(lower, p)
			if i < 0 {
				break
			}
			runes = append(runes[:i], runes[i+len(p):]...)
			lower = append(lower[:i], lower[i+len(p):]...)
		}
	}
	out := strings.Join(strings.Fields(string(runes)), " ")
	if r := []rune(out); len(r) > maxContentRunes {
		out = strings.TrimSpace(string(r[:maxContentRunes]))
	}
	return out
}

// runeIndex returns the first rune offset of needle in haystack, or -1.
func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
