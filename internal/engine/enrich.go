package engine

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/seeker/config"
)

const maxEnrichedRunes = 4000

// Enricher replaces snippet-grade content with extracted article text for
// the top documents before synthesis. Fetch failures leave the snippet as-is;
// enrichment only ever upgrades a document.
type Enricher struct {
	cfg    *config.Config
	client *http.Client
	logger *log.Logger
}

func NewEnricher(cfg *config.Config) *Enricher {
	return &Enricher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Engine.EnrichTimeout},
		logger: log.New(log.Writer(), "[ENRICH] ", log.LstdFlags),
	}
}

// Enrich fetches each document concurrently and swaps in readable article
// text where extraction succeeds.
func (e *Enricher) Enrich(ctx context.Context, docs []RankedDocument) {
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func(doc *RankedDocument) {
			defer wg.Done()
			text, err := e.extract(ctx, doc.URL)
			if err != nil {
				e.logger.Printf("enrich %s: %v", doc.URL, err)
				return
			}
			if text != "" {
				doc.Summary = text
			}
		}(&docs[i])
	}
	wg.Wait()
}

func (e *Enricher) extract(ctx context.Context, rawURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.Engine.EnrichTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; seeker/1.0)")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", err
	}
	text := strings.Join(strings.Fields(article.TextContent), " ")
	runes := []rune(text)
	if len(runes) > maxEnrichedRunes {
		text = strings.TrimSpace(string(runes[:maxEnrichedRunes]))
	}
	return text, nil
}
