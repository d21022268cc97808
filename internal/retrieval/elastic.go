package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
)

// ElasticIndex stores passages in an Elasticsearch index and ranks them
// with a match query.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticIndex(client *elasticsearch.Client, index string, log logger.Logger) *ElasticIndex {
	return &ElasticIndex{
		client: client,
		index:  index,
		logger: log.With(map[string]interface{}{
			"component": "retrieval.elastic",
			"index":     index,
		}),
	}
}

// Seed indexes passages by ID, replacing existing documents.
func (e *ElasticIndex) Seed(ctx context.Context, passages []Passage) error {
	for _, p := range passages {
		body, err := json.Marshal(p)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      e.index,
			DocumentID: p.ID,
			Body:       bytes.NewReader(body),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, e.client)
		if err != nil {
			return apperrors.NewRetrievalFailedError(err)
		}
		res.Body.Close()
		if res.IsError() {
			return apperrors.NewRetrievalFailedError(fmt.Errorf("index %s: %s", p.ID, res.Status()))
		}
	}
	e.logger.Info("passages indexed", map[string]interface{}{
		"count": len(passages),
	})
	return nil
}

func (e *ElasticIndex) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 3
	}
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "text"},
			},
		},
		"size": k,
	}
	body, _ := json.Marshal(queryBody)

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewSearchTimeoutError(e.index)
		}
		return nil, apperrors.NewRetrievalFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(e.index)
	}
	if res.IsError() {
		return nil, apperrors.NewRetrievalFailedError(fmt.Errorf("search failed: %s", res.String()))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source Passage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewRetrievalFailedError(err)
	}

	out := make([]Passage, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		p := h.Source
		p.Score = h.Score
		out = append(out, p)
	}
	return out, nil
}
