package engine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// localScore estimates chunk relevance with an in-memory full-text index
// when the remote rerank endpoint is unavailable. Scores are normalised to
// [0,1] by the top hit so they remain comparable with provider relevance.
func (r *Reranker) localScore(q string, documents []string, chunk []RankedDocument) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		r.logger.Printf("local rerank index unavailable: %v", err)
		return
	}
	defer idx.Close()

	for i, doc := range documents {
		if err := idx.Index(fmt.Sprintf("%d", i), map[string]string{"text": doc}); err != nil {
			r.logger.Printf("local rerank index doc %d: %v", i, err)
		}
	}

	mq := bleve.NewMatchQuery(q)
	mq.SetField("text")
	req := bleve.NewSearchRequest(query.Query(mq))
	req.Size = len(documents)
	res, err := idx.Search(req)
	if err != nil || res.MaxScore == 0 {
		return
	}
	for _, hit := range res.Hits {
		var i int
		if _, err := fmt.Sscanf(hit.ID, "%d", &i); err != nil {
			continue
		}
		if i >= 0 && i < len(chunk) {
			chunk[i].Relevance = hit.Score / res.MaxScore
		}
	}
}
