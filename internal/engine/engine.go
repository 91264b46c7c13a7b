package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/internal/cache"
	"github.com/mohammad-safakhou/seeker/internal/telemetry"
	"github.com/mohammad-safakhou/seeker/provider"
	web_search "github.com/mohammad-safakhou/seeker/tools/web_search"
)

// Engine orchestrates a full research turn: plan, layered search, aggregate,
// rerank, enrich, synthesize. It owns the credential pools and shares one
// rotated executor across all provider-facing phases.
type Engine struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	llmPool    *Pool
	searchPool *Pool

	planner     *Planner
	executor    *SearchExecutor
	reranker    *Reranker
	enricher    *Enricher
	synthesizer *Synthesizer
}

// New wires the engine from its external collaborators. The layer cache may
// be nil (cache disabled).
func New(cfg *config.Config, tele *telemetry.Telemetry, llm provider.Provider, searcher web_search.WebSearcher, layerCache *cache.LayerCache) (*Engine, error) {
	llmPool, err := NewPool("llm", cfg.LLM.Keys)
	if err != nil {
		return nil, err
	}
	searchPool, err := NewPool("search", cfg.Search.Keys)
	if err != nil {
		return nil, err
	}

	rotator := NewRotator(cfg.Engine, tele)

	return &Engine{
		cfg:         cfg,
		telemetry:   tele,
		logger:      log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
		llmPool:     llmPool,
		searchPool:  searchPool,
		planner:     NewPlanner(cfg, llm, llmPool, rotator),
		executor:    NewSearchExecutor(cfg, searcher, searchPool, rotator, layerCache, tele),
		reranker:    NewReranker(cfg, searcher, searchPool, rotator, tele),
		enricher:    NewEnricher(cfg),
		synthesizer: NewSynthesizer(cfg, llm, llmPool, rotator),
	}, nil
}

// Research runs one full orchestration. Planning and synthesis failures are
// fatal; search and rerank degradations reduce grounding but still answer.
func (e *Engine) Research(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrInvalidRequest
	}

	runID := uuid.NewString()[:8]
	tracer := otel.Tracer("seeker/engine")
	ctx, span := tracer.Start(ctx, "engine.research")
	span.SetAttributes(attribute.String("research.run_id", runID))
	defer span.End()

	started := time.Now()

	plan, err := e.phasePlan(ctx, tracer, req)
	if err != nil {
		return nil, err
	}

	if req.Search && plan.SkipSearch {
		// The caller explicitly asked for grounding; the planner may only
		// add search, never take it away.
		plan.SkipSearch = false
	}

	auto := AutoApplied{}
	if !req.Search && !plan.SkipSearch {
		// Planner decided grounding is needed even though the caller did
		// not ask for it. Caller-requested modes are never disabled.
		auto.Search = true
	}
	deep := req.Deep
	if !deep && (plan.Depth == DepthDeep || plan.Depth == DepthElite) {
		deep = true
		auto.Deep = true
	}
	thinking := req.Thinking
	if !thinking && plan.SuggestReasoning {
		thinking = true
		auto.Reasoning = true
	}
	req.Deep = deep
	req.Thinking = thinking

	result := &Result{
		SearchQueries: plan.QueryPaths,
		AutoApplied:   auto,
		Plan:          plan,
	}

	var top []RankedDocument
	if !plan.SkipSearch {
		ranked := e.phaseSearch(ctx, tracer, plan, deep)
		result.AllSources = make([]RawResult, len(ranked))
		for i, d := range ranked {
			result.AllSources[i] = d.RawResult
		}
		top = topDocuments(ranked, e.topN(deep))
		if deep && e.cfg.Engine.EnrichTopDocuments && len(top) > 0 {
			enrichCtx, enrichSpan := tracer.Start(ctx, "engine.enrich")
			e.enricher.Enrich(enrichCtx, top)
			enrichSpan.End()
		}
		result.Sources = top
	}

	answer, err := e.phaseSynthesize(ctx, tracer, req, top)
	if err != nil {
		return nil, err
	}
	result.Answer = answer

	e.telemetry.ObservePhase("research", time.Since(started))
	e.logger.Printf("research %s done in %s: paths=%d sources=%d deep=%v thinking=%v",
		runID, time.Since(started).Round(time.Millisecond), len(result.SearchQueries), len(result.Sources), deep, thinking)
	return result, nil
}

func (e *Engine) phasePlan(ctx context.Context, tracer trace.Tracer, req Request) (SearchPlan, error) {
	ctx, span := tracer.Start(ctx, "engine.plan")
	defer span.End()
	started := time.Now()

	plan, err := e.planner.Plan(ctx, req)
	e.telemetry.ObservePhase("plan", time.Since(started))
	if err != nil {
		return SearchPlan{}, err
	}
	span.SetAttributes(
		attribute.Int("plan.paths", len(plan.QueryPaths)),
		attribute.String("plan.freshness", string(plan.Freshness)),
		attribute.Bool("plan.skip_search", plan.SkipSearch),
	)
	return plan, nil
}

func (e *Engine) phaseSearch(ctx context.Context, tracer trace.Tracer, plan SearchPlan, deep bool) []RankedDocument {
	ctx, span := tracer.Start(ctx, "engine.search")
	defer span.End()
	started := time.Now()

	layers := e.executor.Execute(ctx, plan, deep)
	candidates := Aggregate(layers, e.cfg.Engine.MaxHostResults)
	e.telemetry.ObservePhase("search", time.Since(started))
	span.SetAttributes(
		attribute.Int("search.layers", len(layers)),
		attribute.Int("search.candidates", len(candidates)),
	)

	var rerankQuery string
	if len(plan.QueryPaths) > 0 {
		rerankQuery = plan.QueryPaths[0]
	}
	rerankStarted := time.Now()
	rankCtx, rerankSpan := tracer.Start(ctx, "engine.rerank")
	ranked := e.reranker.Rerank(rankCtx, rerankQuery, candidates)
	rerankSpan.End()
	e.telemetry.ObservePhase("rerank", time.Since(rerankStarted))
	return ranked
}

func (e *Engine) phaseSynthesize(ctx context.Context, tracer trace.Tracer, req Request, top []RankedDocument) (string, error) {
	ctx, span := tracer.Start(ctx, "engine.synthesize")
	defer span.End()
	started := time.Now()

	synth := e.synthesizer.Assemble(req, top)
	answer, err := e.synthesizer.Synthesize(ctx, synth, req.Deep)
	e.telemetry.ObservePhase("synthesize", time.Since(started))
	return answer, err
}

func (e *Engine) topN(deep bool) int {
	if deep {
		return e.cfg.Engine.DeepTopN
	}
	return e.cfg.Engine.TopN
}

func topDocuments(ranked []RankedDocument, n int) []RankedDocument {
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}
