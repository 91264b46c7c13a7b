package bocha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/seeker/tools/web_search/models"
)

const defaultBaseURL = "https://api.bochaai.com"

// Search implements the web-search and semantic-rerank endpoints of the Bocha
// AI search service. https://open.bochaai.com
type Search struct {
	baseURL    string
	httpClient *http.Client
}

// APIError carries the HTTP status of a failed call so callers can decide
// whether the credential should rotate.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bocha API returned status %d: %s", e.Status, e.Body)
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

// freshnessParam maps the engine freshness labels onto Bocha's enum.
func freshnessParam(freshness string) string {
	switch freshness {
	case "hour":
		return "oneHour"
	case "day":
		return "oneDay"
	case "week":
		return "oneWeek"
	case "month":
		return "oneMonth"
	case "year":
		return "oneYear"
	default:
		return "noLimit"
	}
}

// Search queries the web-search endpoint.
func (s *Search) Search(ctx context.Context, apiKey, query string, opts models.Options) ([]models.Result, error) {
	payload := map[string]interface{}{
		"query":     query,
		"freshness": freshnessParam(opts.Freshness),
		"count":     opts.Count,
		"summary":   true,
	}
	var raw struct {
		Data struct {
			WebPages struct {
				Value []struct {
					URL           string `json:"url"`
					Name          string `json:"name"`
					Snippet       string `json:"snippet"`
					Summary       string `json:"summary"`
					DatePublished string `json:"datePublished"`
				} `json:"value"`
			} `json:"webPages"`
		} `json:"data"`
	}
	if err := s.post(ctx, apiKey, "/v1/web-search", payload, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Result, 0, len(raw.Data.WebPages.Value))
	for i, r := range raw.Data.WebPages.Value {
		if opts.Count > 0 && i >= opts.Count {
			break
		}
		out = append(out, models.Result{
			URL:           r.URL,
			Title:         r.Name,
			Snippet:       r.Snippet,
			Summary:       r.Summary,
			DatePublished: parseDate(r.DatePublished),
		})
	}
	return out, nil
}

// Rerank scores documents against the query via the sibling semantic-rerank
// endpoint. Scores come back per original document index.
func (s *Search) Rerank(ctx context.Context, apiKey, query string, documents []string) ([]models.Scored, error) {
	payload := map[string]interface{}{
		"model":            "gte-rerank",
		"query":            query,
		"documents":        documents,
		"top_n":            len(documents),
		"return_documents": false,
	}
	var raw struct {
		Data struct {
			Results []struct {
				Index          int     `json:"index"`
				RelevanceScore float64 `json:"relevance_score"`
			} `json:"results"`
		} `json:"data"`
	}
	if err := s.post(ctx, apiKey, "/v1/rerank", payload, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Scored, 0, len(raw.Data.Results))
	for _, r := range raw.Data.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		out = append(out, models.Scored{Index: r.Index, Relevance: r.RelevanceScore})
	}
	return out, nil
}

func (s *Search) post(ctx context.Context, apiKey, path string, payload interface{}, into interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func parseDate(s string) time.Time {
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
