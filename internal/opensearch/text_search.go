package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/types"
)

const (
	maxTextSearchSize = 1000
	fuzzyBoost        = 1.0
	phrasePrefixBoost = 1.5
	bestFieldsBoost   = 2.0
	bestFieldsTie     = 0.3
)

// DefaultTextFields are searched when a source declares none.
var DefaultTextFields = []string{"content", "fileName", "source"}

// TextQuery is a free-text lookup across one or more indices.
type TextQuery struct {
	Query   string
	Indices []string
	Fields  []string
	Size    int
}

// TextSearchHit is one document returned by a text search.
type TextSearchHit struct {
	ID     string          `json:"_id"`
	Index  string          `json:"_index"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// TextSearchResponse carries the hits plus the shard bookkeeping OpenSearch reports.
type TextSearchResponse struct {
	Hits         []TextSearchHit
	Total        int
	Took         int
	FailedShards int
}

// SearchText runs the fuzzy, phrase-prefix and best-fields clauses as one bool query.
func (c *Client) SearchText(ctx context.Context, query *TextQuery) (*TextSearchResponse, error) {
	if query == nil {
		return nil, NewSearchError(types.ErrorTypeValidation, "query cannot be nil")
	}
	if query.Query == "" {
		return nil, NewSearchError(types.ErrorTypeValidation, "query string cannot be empty")
	}
	if len(query.Indices) == 0 {
		return nil, NewSearchError(types.ErrorTypeValidation, "at least one index is required")
	}

	body, err := json.Marshal(buildTextSearchBody(query))
	if err != nil {
		return nil, NewSearchError(types.ErrorTypeValidation, fmt.Sprintf("failed to marshal search body: %v", err))
	}

	startTime := time.Now()
	var result *TextSearchResponse

	operation := func() error {
		if err := c.WaitForRateLimit(ctx); err != nil {
			return fmt.Errorf("rate limit error: %w", err)
		}

		req := &opensearchapi.SearchReq{
			Indices: query.Indices,
			Body:    bytes.NewReader(body),
		}

		searchResp, err := c.client.Search(ctx, req)
		if err != nil {
			return ClassifyConnectionError(err)
		}
		if searchResp == nil {
			return NewSearchError(types.ErrorTypeSourceResponse, "received nil response from OpenSearch")
		}

		resp := &TextSearchResponse{
			Total:        searchResp.Hits.Total.Value,
			Took:         searchResp.Took,
			FailedShards: searchResp.Shards.Failed,
			Hits:         make([]TextSearchHit, len(searchResp.Hits.Hits)),
		}
		for i, hit := range searchResp.Hits.Hits {
			resp.Hits[i] = TextSearchHit{
				ID:     hit.ID,
				Index:  hit.Index,
				Score:  float64(hit.Score),
				Source: hit.Source,
			}
		}
		result = resp
		return nil
	}

	err = c.ExecuteWithRetry(ctx, operation, "TextSearch")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("text search completed",
		zap.Strings("indices", query.Indices),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("hits", len(result.Hits)),
		zap.Int("total", result.Total))
	return result, nil
}

func buildTextSearchBody(query *TextQuery) map[string]interface{} {
	size := query.Size
	if size <= 0 {
		size = 100
	}
	if size > maxTextSearchSize {
		size = maxTextSearchSize
	}

	fields := query.Fields
	if len(fields) == 0 {
		fields = DefaultTextFields
	}

	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{
						"multi_match": map[string]interface{}{
							"query":         query.Query,
							"fields":        fields,
							"fuzziness":     "AUTO",
							"prefix_length": 2,
							"boost":         fuzzyBoost,
						},
					},
					{
						"multi_match": map[string]interface{}{
							"query":  query.Query,
							"fields": fields,
							"type":   "phrase_prefix",
							"boost":  phrasePrefixBoost,
						},
					},
					{
						"multi_match": map[string]interface{}{
							"query":       query.Query,
							"fields":      fields,
							"type":        "best_fields",
							"tie_breaker": bestFieldsTie,
							"boost":       bestFieldsBoost,
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []map[string]interface{}{
			{"_score": map[string]string{"order": "desc"}},
		},
	}
}
