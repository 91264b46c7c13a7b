package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/seeker/tools/web_search/models"
)

const defaultBaseURL = "https://api.search.brave.com"

// ErrRerankUnsupported is returned because Brave has no rerank endpoint;
// callers fall back to boost-only or local ordering.
var ErrRerankUnsupported = errors.New("brave does not expose a rerank endpoint")

// Search implements the Brave web-search API.
// https://api.search.brave.com/app/documentation/web-search
type Search struct {
	baseURL    string
	httpClient *http.Client
}

// APIError carries the HTTP status of a failed call.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brave API returned status %d: %s", e.Status, e.Body)
}

// HTTPStatus implements the status classification contract.
func (e *APIError) HTTPStatus() int { return e.Status }

func NewSearch(baseURL string, timeout time.Duration) *Search {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Search{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// freshnessParam maps engine freshness labels onto Brave's freshness codes.
func freshnessParam(freshness string) string {
	switch freshness {
	case "hour", "day":
		return "pd"
	case "week":
		return "pw"
	case "month":
		return "pm"
	case "year":
		return "py"
	default:
		return ""
	}
}

func (s *Search) Search(ctx context.Context, apiKey, query string, opts models.Options) ([]models.Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", opts.Count))
	if f := freshnessParam(opts.Freshness); f != "" {
		q.Set("freshness", f)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/res/v1/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
				Age     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var out []models.Result
	for i, r := range raw.Web.Results {
		if opts.Count > 0 && i >= opts.Count {
			break
		}
		out = append(out, models.Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Snippet,
			DatePublished: parseAge(r.Age),
		})
	}
	return out, nil
}

// Rerank is not available on Brave.
func (s *Search) Rerank(ctx context.Context, apiKey, query string, documents []string) ([]models.Scored, error) {
	return nil, ErrRerankUnsupported
}

func parseAge(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
