package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ca-srg/leakscope/internal/opensearch"
	"github.com/ca-srg/leakscope/internal/record"
)

type textSearcher interface {
	SearchText(ctx context.Context, query *opensearch.TextQuery) (*opensearch.TextSearchResponse, error)
	HealthCheck(ctx context.Context) error
}

// OpenSearchSource queries one or more OpenSearch indices.
type OpenSearchSource struct {
	name    string
	indices []string
	fields  []string
	client  textSearcher
	// scoped ids are "<index>/<_id>" because _id is only unique per index.
	scoped bool
}

// NewOpenSearchSource builds a source over indices; empty fields use the client defaults.
func NewOpenSearchSource(name string, indices, fields []string, client textSearcher) *OpenSearchSource {
	return &OpenSearchSource{
		name:    name,
		indices: indices,
		fields:  fields,
		client:  client,
		scoped:  spansIndices(indices),
	}
}

// spansIndices reports whether the patterns can resolve to more than one index.
func spansIndices(indices []string) bool {
	if len(indices) != 1 {
		return true
	}
	return strings.ContainsAny(indices[0], "*?,") || strings.HasPrefix(indices[0], "_all")
}

func (s *OpenSearchSource) Name() string { return s.name }

func (s *OpenSearchSource) Query(ctx context.Context, text string, limit int) ([]record.RawHit, error) {
	resp, err := s.client.SearchText(ctx, &opensearch.TextQuery{
		Query:   text,
		Indices: s.indices,
		Fields:  s.fields,
		Size:    limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]record.RawHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		raw := record.RawHit{}
		if len(h.Source) > 0 {
			dec := json.NewDecoder(bytes.NewReader(h.Source))
			dec.UseNumber()
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("decode hit %s/%s: %w", h.Index, h.ID, err)
			}
			if raw == nil {
				raw = record.RawHit{}
			}
		}
		id := h.ID
		if s.scoped && id != "" {
			id = h.Index + "/" + id
		}
		raw[record.RawIDKey] = id
		raw[record.RawScoreKey] = h.Score
		raw[record.RawIndexKey] = h.Index
		hits = append(hits, raw)
	}
	return hits, nil
}

func (s *OpenSearchSource) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}
