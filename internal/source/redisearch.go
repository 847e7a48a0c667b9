package source

import (
	"context"

	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/redisearch"
)

type rediSearcher interface {
	Search(ctx context.Context, q *redisearch.TextQuery) (*redisearch.Result, error)
	Ping(ctx context.Context) error
}

// RediSearchSource queries a RediSearch or Valkey Search index.
type RediSearchSource struct {
	name   string
	index  string
	fields []string
	client rediSearcher
}

func NewRediSearchSource(name, index string, fields []string, client rediSearcher) *RediSearchSource {
	return &RediSearchSource{name: name, index: index, fields: fields, client: client}
}

func (s *RediSearchSource) Name() string { return s.name }

func (s *RediSearchSource) Query(ctx context.Context, text string, limit int) ([]record.RawHit, error) {
	res, err := s.client.Search(ctx, &redisearch.TextQuery{
		Index:  s.index,
		Query:  text,
		Fields: s.fields,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]record.RawHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		raw := make(record.RawHit, len(e.Fields)+3)
		for k, v := range e.Fields {
			raw[k] = v
		}
		raw[record.RawIDKey] = e.Key
		raw[record.RawScoreKey] = e.Score
		raw[record.RawIndexKey] = s.index
		hits = append(hits, raw)
	}
	return hits, nil
}

func (s *RediSearchSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
