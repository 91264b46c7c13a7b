package engine

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/internal/cache"
	"github.com/mohammad-safakhou/seeker/internal/telemetry"
	web_search "github.com/mohammad-safakhou/seeker/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/seeker/tools/web_search/models"
)

// DeriveLayers expands a plan into the concrete (query path, freshness)
// provider calls. Per path: the plan freshness layer when it is not "all",
// an hour layer when requested and not already covered, and an "all" layer
// for the primary path, for deep mode, or when the plan freshness is "all" —
// so every plan keeps at least baseline coverage.
func DeriveLayers(plan SearchPlan, deep bool) []SearchLayer {
	var layers []SearchLayer
	index := 0
	for pathIdx, path := range plan.QueryPaths {
		seen := make(map[Freshness]struct{}, 3)
		add := func(f Freshness) {
			if _, dup := seen[f]; dup {
				return
			}
			seen[f] = struct{}{}
			layers = append(layers, SearchLayer{QueryPath: path, Freshness: f, Index: index})
			index++
		}

		if plan.Freshness != FreshnessAll {
			add(plan.Freshness)
		}
		if plan.UseHourLayer {
			add(FreshnessHour)
		}
		if pathIdx == 0 || deep || plan.Freshness == FreshnessAll {
			add(FreshnessAll)
		}
	}
	return layers
}

// SearchExecutor fans the derived layers out to the web-search provider.
// Query paths run concurrently (capped at the credential pool size); layers
// within one path run sequentially with a pacing gap so a path never bursts
// its quota twice in an instant. Individual layer failures are logged and
// excluded; the executor itself never fails.
type SearchExecutor struct {
	cfg       *config.Config
	searcher  web_search.WebSearcher
	pool      *Pool
	rotator   *Rotator
	cache     *cache.LayerCache
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewSearchExecutor(cfg *config.Config, searcher web_search.WebSearcher, pool *Pool, rotator *Rotator, layerCache *cache.LayerCache, tele *telemetry.Telemetry) *SearchExecutor {
	return &SearchExecutor{
		cfg:       cfg,
		searcher:  searcher,
		pool:      pool,
		rotator:   rotator,
		cache:     layerCache,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// Execute runs every layer of the plan and returns the per-layer result
// slices, indexed by layer. Failed layers leave a nil slice in place. Total
// failure yields all-nil slices, never an error.
func (e *SearchExecutor) Execute(ctx context.Context, plan SearchPlan, deep bool) [][]RawResult {
	layers := DeriveLayers(plan, deep)
	results := make([][]RawResult, len(layers))
	if len(layers) == 0 {
		return results
	}

	count := e.cfg.Search.Count
	if deep {
		count = e.cfg.Search.DeepCount
	}

	// Group layers by path; each group runs on its own goroutine.
	byPath := make(map[string][]SearchLayer, len(plan.QueryPaths))
	for _, l := range layers {
		byPath[l.QueryPath] = append(byPath[l.QueryPath], l)
	}

	sem := make(chan struct{}, e.pool.Size())
	var wg sync.WaitGroup
	var mu sync.Mutex

	for pathIdx, path := range plan.QueryPaths {
		group := byPath[path]
		if len(group) == 0 {
			continue
		}
		wg.Add(1)
		go func(pathIdx int, group []SearchLayer) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for i, layer := range group {
				if i > 0 {
					if err := sleepCtx(ctx, e.cfg.Engine.LayerGap); err != nil {
						return
					}
				}
				items, err := e.executeLayer(ctx, layer, pathIdx, count)
				if err != nil {
					e.telemetry.RecordSearchLayer(false)
					e.logger.Printf("layer %d (%q, %s) failed: %v", layer.Index, layer.QueryPath, layer.Freshness, err)
					continue
				}
				e.telemetry.RecordSearchLayer(true)
				mu.Lock()
				results[layer.Index] = items
				mu.Unlock()
			}
		}(pathIdx, group)
	}
	wg.Wait()

	return results
}

// executeLayer performs one provider call through the rotated executor,
// seeded with the path index so parallel paths start on different
// credentials. A cache hit skips the provider (and the pool) entirely.
func (e *SearchExecutor) executeLayer(ctx context.Context, layer SearchLayer, startOffset, count int) ([]RawResult, error) {
	key := cache.Key(layer.QueryPath, string(layer.Freshness), count)
	if payload, ok := e.cache.Get(ctx, key); ok {
		var cached []RawResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	opts := searchmodels.Options{Freshness: string(layer.Freshness), Count: count}
	var hits []searchmodels.Result
	err := e.rotator.Execute(ctx, e.pool, startOffset, func(ctx context.Context, apiKey string) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Search.Timeout)
		defer cancel()
		out, err := e.searcher.Search(callCtx, apiKey, layer.QueryPath, opts)
		if err != nil {
			return err
		}
		hits = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]RawResult, 0, len(hits))
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		items = append(items, RawResult{
			URL:             h.URL,
			Title:           h.Title,
			Snippet:         h.Snippet,
			Summary:         h.Summary,
			PublishedAt:     h.DatePublished,
			OriginFreshness: layer.Freshness,
		})
	}

	if payload, err := json.Marshal(items); err == nil {
		e.cache.Set(ctx, key, payload)
	}
	return items, nil
}
