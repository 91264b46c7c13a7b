package web_search

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/seeker/tools/web_search/bocha"
	"github.com/mohammad-safakhou/seeker/tools/web_search/brave"
	"github.com/mohammad-safakhou/seeker/tools/web_search/models"
)

// WebSearcher is the provider-neutral search and rerank contract. The API key
// is passed per call so a rotating credential pool can feed it.
type WebSearcher interface {
	Search(ctx context.Context, apiKey, query string, opts models.Options) ([]models.Result, error)
	Rerank(ctx context.Context, apiKey, query string, documents []string) ([]models.Scored, error)
}

type Provider string

const (
	BochaProvider Provider = "bocha"
	BraveProvider Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

// ErrRerankUnsupported is returned by providers without a rerank endpoint.
var ErrRerankUnsupported = brave.ErrRerankUnsupported

func NewWebSearcher(provider Provider, baseURL string, timeout time.Duration) (WebSearcher, error) {
	switch provider {
	case BochaProvider:
		return bocha.NewSearch(baseURL, timeout), nil
	case BraveProvider:
		return brave.NewSearch(baseURL, timeout), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
