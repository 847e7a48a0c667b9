package source

import (
	"context"

	"github.com/ca-srg/leakscope/internal/normalize"
	"github.com/ca-srg/leakscope/internal/record"
)

// Source is a backing full-text index that can answer a free-text query.
// Implementations fill the reserved RawHit keys (_id, _score, _index) when known.
type Source interface {
	Name() string
	Query(ctx context.Context, text string, limit int) ([]record.RawHit, error)
}

// Pinger is implemented by sources that can check their own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Binding pairs a source with the schema used to normalize its hits.
type Binding struct {
	Source Source
	Schema normalize.SourceSchema
	// Limit overrides the engine's per-source limit when positive.
	Limit int
}

// Name returns the bound source's name.
func (b Binding) Name() string {
	return b.Source.Name()
}

// Func adapts a function to the Source interface.
type Func struct {
	SourceName string
	Fn         func(ctx context.Context, text string, limit int) ([]record.RawHit, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) Query(ctx context.Context, text string, limit int) ([]record.RawHit, error) {
	return f.Fn(ctx, text, limit)
}
