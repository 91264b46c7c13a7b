package engine

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/models"
	searchmodels "github.com/mohammad-safakhou/seeker/tools/web_search/models"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM = config.LLMConfig{
		Keys:              []string{"llm-key-1", "llm-key-2"},
		ChatModel:         "gpt-test",
		ReasonerModel:     "gpt-test-reasoner",
		MaxTokens:         1024,
		ReasonerMaxTokens: 4096,
		Temperature:       0.5,
		Timeout:           5 * time.Second,
		DeepTimeout:       10 * time.Second,
	}
	cfg.Search = config.SearchConfig{
		Provider:  "bocha",
		Keys:      []string{"search-key-1", "search-key-2", "search-key-3"},
		Count:     10,
		DeepCount: 20,
		Timeout:   5 * time.Second,
	}
	cfg.Engine = config.EngineConfig{
		PacingRateLimited: time.Millisecond,
		PacingRotatable:   time.Millisecond,
		LayerGap:          time.Millisecond,
	}.Normalize()
	return cfg
}

// stubProvider answers chat completions from a scripted function.
type stubProvider struct {
	mu    sync.Mutex
	calls []stubProviderCall
	fn    func(apiKey string, messages []models.ChatMessage, params models.CompletionParams) (string, error)
}

type stubProviderCall struct {
	APIKey   string
	Messages []models.ChatMessage
	Params   models.CompletionParams
}

func (s *stubProvider) Complete(_ context.Context, apiKey string, messages []models.ChatMessage, params models.CompletionParams) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubProviderCall{APIKey: apiKey, Messages: messages, Params: params})
	s.mu.Unlock()
	return s.fn(apiKey, messages, params)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubSearcher answers search and rerank from scripted functions.
type stubSearcher struct {
	mu          sync.Mutex
	searches    []stubSearchCall
	rerankCalls int
	searchFn    func(apiKey, query string, opts searchmodels.Options) ([]searchmodels.Result, error)
	rerankFn    func(apiKey, query string, documents []string) ([]searchmodels.Scored, error)
}

type stubSearchCall struct {
	APIKey    string
	Query     string
	Freshness string
}

func (s *stubSearcher) Search(_ context.Context, apiKey, query string, opts searchmodels.Options) ([]searchmodels.Result, error) {
	s.mu.Lock()
	s.searches = append(s.searches, stubSearchCall{APIKey: apiKey, Query: query, Freshness: opts.Freshness})
	s.mu.Unlock()
	return s.searchFn(apiKey, query, opts)
}

func (s *stubSearcher) Rerank(_ context.Context, apiKey, query string, documents []string) ([]searchmodels.Scored, error) {
	s.mu.Lock()
	s.rerankCalls++
	s.mu.Unlock()
	if s.rerankFn == nil {
		scored := make([]searchmodels.Scored, len(documents))
		for i := range documents {
			scored[i] = searchmodels.Scored{Index: i, Relevance: 0.5}
		}
		return scored, nil
	}
	return s.rerankFn(apiKey, query, documents)
}

func (s *stubSearcher) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

func (s *stubSearcher) freshnessSeen() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, c := range s.searches {
		out[c.Freshness]++
	}
	return out
}
