package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/models"
	"github.com/mohammad-safakhou/seeker/provider"
)

// Planner turns a raw query plus history into a SearchPlan. Classification is
// delegated to the chat-completion provider with a structured-output
// contract; trivial conversational turns short-circuit locally without a
// provider call.
type Planner struct {
	cfg     *config.Config
	llm     provider.Provider
	pool    *Pool
	rotator *Rotator
	logger  *log.Logger
}

func NewPlanner(cfg *config.Config, llm provider.Provider, pool *Pool, rotator *Rotator) *Planner {
	return &Planner{
		cfg:     cfg,
		llm:     llm,
		pool:    pool,
		rotator: rotator,
		logger:  log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// conversationalPatterns short-circuit planning for turns that plainly need
// no research. Matching is exact after normalisation, or prefix-based for
// greetings carrying a name ("hey seeker").
var conversationalPatterns = []string{
	"hi", "hello", "hey", "yo", "sup", "what's up", "whats up",
	"thanks", "thank you", "thx", "ok", "okay", "cool", "nice", "great",
	"good morning", "good afternoon", "good evening", "good night",
	"how are you", "bye", "goodbye", "see you", "test", "ping",
}

var conversationalPrefixes = []string{"hi ", "hello ", "hey ", "thanks ", "thank you "}

// IsConversational reports whether the query is a greeting / courtesy turn
// that should skip search entirely.
func IsConversational(query string) bool {
	s := strings.ToLower(strings.TrimSpace(query))
	s = strings.TrimRight(s, "!.?,:; ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || utf8.RuneCountInString(s) > 40 {
		return false
	}
	for _, p := range conversationalPatterns {
		if s == p {
			return true
		}
	}
	for _, p := range conversationalPrefixes {
		if strings.HasPrefix(s, p) && len(strings.Fields(s)) <= 3 {
			return true
		}
	}
	return false
}

// Plan produces the search strategy for one request. Caller-supplied query
// paths bypass classification entirely; a conservative freshness policy
// applies in that case.
func (p *Planner) Plan(ctx context.Context, req Request) (SearchPlan, error) {
	if IsConversational(req.Query) {
		p.logger.Printf("conversational turn, skipping search: %q", req.Query)
		return SearchPlan{
			QueryPaths: []string{req.Query},
			Freshness:  FreshnessAll,
			Depth:      DepthSurface,
			SkipSearch: true,
		}, nil
	}

	if len(req.Queries) > 0 {
		paths := dedupePaths(req.Queries, maxPathsForDepth(depthForRequest(req)))
		if len(paths) == 0 {
			// Every caller path was blank; search the question itself.
			paths = []string{req.Query}
		}
		return SearchPlan{
			QueryPaths:   paths,
			Freshness:    FreshnessAll,
			UseHourLayer: req.Deep,
			Depth:        depthForRequest(req),
			SkipSearch:   false,
		}, nil
	}

	plan, err := p.classify(ctx, req)
	if err != nil {
		return SearchPlan{}, &PlanningError{Err: err}
	}
	return plan, nil
}

func depthForRequest(req Request) Depth {
	if req.Deep {
		return DepthDeep
	}
	return DepthStandard
}

func maxPathsForDepth(d Depth) int {
	switch d {
	case DepthSurface:
		return 1
	case DepthDeep:
		return 4
	case DepthElite:
		return 5
	default:
		return 3
	}
}

// classify asks the LLM for a structured plan and normalises the answer.
func (p *Planner) classify(ctx context.Context, req Request) (SearchPlan, error) {
	prompt := p.createPlanningPrompt(req)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.LLM.Timeout)
	defer cancel()

	var response string
	err := p.rotator.Execute(callCtx, p.pool, 0, func(ctx context.Context, apiKey string) error {
		out, err := p.llm.Complete(ctx, apiKey, []models.ChatMessage{
			{Role: "system", Content: planningSystemPrompt},
			{Role: "user", Content: prompt},
		}, models.CompletionParams{
			Model:       p.cfg.LLM.ChatModel,
			MaxTokens:   512,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		response = out
		return nil
	})
	if err != nil {
		return SearchPlan{}, err
	}

	plan, err := p.parsePlanResponse(req, response)
	if err != nil {
		return SearchPlan{}, err
	}
	p.logger.Printf("plan: paths=%d freshness=%s hour_layer=%v depth=%s skip=%v reasoning=%v",
		len(plan.QueryPaths), plan.Freshness, plan.UseHourLayer, plan.Depth, plan.SkipSearch, plan.SuggestReasoning)
	return plan, nil
}

const planningSystemPrompt = `You are the search strategist of a research assistant. Given the user's question and recent conversation, decide how to search the web for grounding material.

Respond ONLY with valid JSON in exactly this shape:
{
  "queries": ["optimized search query", "..."],
  "freshness": "hour|day|week|month|year|all",
  "use_hour_layer": true,
  "depth": "surface|standard|deep|elite",
  "skip_search": false,
  "reasoning": false
}

Rules:
1. "queries" holds 1-4 short keyword-style search strings covering distinct angles of the question. The most direct phrasing first.
2. "freshness" is the tightest window that still answers the question: breaking news -> "hour" or "day"; evergreen facts -> "all".
3. "use_hour_layer" is true only when the last hour genuinely matters.
4. "depth" reflects how much material a good answer needs.
5. "skip_search" is true only when the question needs no external information at all (chit-chat, arithmetic, opinions about the conversation itself).
6. "reasoning" is true when the question needs multi-step derivation rather than lookup.
Do not include any other text or explanation.`

func (p *Planner) createPlanningPrompt(req Request) string {
	var b strings.Builder
	if n := len(req.History); n > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		start := n - 4
		if start < 0 {
			start = 0
		}
		for _, m := range req.History[start:] {
			content := m.Content
			if utf8.RuneCountInString(content) > 300 {
				content = string([]rune(content)[:300]) + "..."
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "QUESTION: %s\n", req.Query)
	fmt.Fprintf(&b, "TODAY: %s\n", time.Now().Format("2006-01-02"))
	return b.String()
}

// parsePlanResponse extracts and validates the structured plan. The first
// query path is always the original question unless the model produced an
// explicit replacement set that already leads with it.
func (p *Planner) parsePlanResponse(req Request, response string) (SearchPlan, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return SearchPlan{}, fmt.Errorf("no JSON found in planner response")
	}

	var raw struct {
		Queries      []string `json:"queries"`
		Freshness    string   `json:"freshness"`
		UseHourLayer bool     `json:"use_hour_layer"`
		Depth        string   `json:"depth"`
		SkipSearch   bool     `json:"skip_search"`
		Reasoning    bool     `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return SearchPlan{}, fmt.Errorf("failed to parse planner response: %w", err)
	}

	depth := ParseDepth(raw.Depth)
	paths := append([]string{req.Query}, raw.Queries...)
	paths = dedupePaths(paths, maxPathsForDepth(depth))

	return SearchPlan{
		QueryPaths:       paths,
		Freshness:        ParseFreshness(raw.Freshness),
		UseHourLayer:     raw.UseHourLayer,
		Depth:            depth,
		SkipSearch:       raw.SkipSearch,
		SuggestReasoning: raw.Reasoning,
	}, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// dedupePaths trims, drops empties and duplicates (case-insensitive,
// preserving first occurrence) and caps the list at max.
func dedupePaths(paths []string, max int) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, q := range paths {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == max {
			break
		}
	}
	return out
}
