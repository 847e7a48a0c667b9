package source

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/config"
	"github.com/ca-srg/leakscope/internal/normalize"
	"github.com/ca-srg/leakscope/internal/opensearch"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/redisearch"
	"github.com/ca-srg/leakscope/internal/types"
)

// Client factories, replaceable in tests.
var (
	newOpenSearchClient = func(cfg *types.Config, logger *zap.Logger) (textSearcher, error) {
		osConfig, err := opensearch.NewConfigFromTypes(cfg)
		if err != nil {
			return nil, err
		}
		return opensearch.NewClient(osConfig, logger)
	}
	newRediSearchClient = func(cfg *types.Config) (rediSearcher, func(), error) {
		client, err := redisearch.NewClient(redisearch.Config{
			Addrs:    cfg.RediSearchAddrs,
			Username: cfg.RediSearchUsername,
			Password: cfg.RediSearchPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
)

// Registry holds the configured source bindings by name.
type Registry struct {
	bindings []Binding
	byName   map[string]int
	closers  []func()
}

// NewRegistry returns a registry over bindings. Names must be unique and non-empty.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(bindings))}
	for _, b := range bindings {
		if b.Source == nil {
			return nil, fmt.Errorf("binding without source")
		}
		name := b.Name()
		if name == "" {
			return nil, fmt.Errorf("source name cannot be empty")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate source name %q", name)
		}
		if b.Schema.Source == "" {
			b.Schema.Source = name
		}
		if b.Schema.Fields == nil {
			b.Schema.Fields = normalize.DefaultFields()
		}
		r.byName[name] = len(r.bindings)
		r.bindings = append(r.bindings, b)
	}
	return r, nil
}

// Build creates clients and bindings for every definition in sources.yaml.
// Clients are shared between sources of the same kind.
func Build(defs []config.SourceDefinition, cfg *types.Config, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		osClient textSearcher
		rsClient rediSearcher
		closers  []func()
		bindings = make([]Binding, 0, len(defs))
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, def := range defs {
		var src Source
		switch def.Kind {
		case config.KindOpenSearch:
			if osClient == nil {
				if cfg.OpenSearchEndpoint == "" {
					closeAll()
					return nil, fmt.Errorf("source %s: OPENSEARCH_ENDPOINT is not configured", def.Name)
				}
				client, err := newOpenSearchClient(cfg, logger)
				if err != nil {
					closeAll()
					return nil, fmt.Errorf("source %s: %w", def.Name, err)
				}
				osClient = client
			}
			src = NewOpenSearchSource(def.Name, def.Indices, def.Fields, osClient)
		case config.KindRediSearch:
			if rsClient == nil {
				if len(cfg.RediSearchAddrs) == 0 {
					closeAll()
					return nil, fmt.Errorf("source %s: REDISEARCH_ADDRS is not configured", def.Name)
				}
				client, closer, err := newRediSearchClient(cfg)
				if err != nil {
					closeAll()
					return nil, fmt.Errorf("source %s: %w", def.Name, err)
				}
				rsClient = client
				if closer != nil {
					closers = append(closers, closer)
				}
			}
			src = NewRediSearchSource(def.Name, def.Index, def.Fields, rsClient)
		default:
			closeAll()
			return nil, fmt.Errorf("source %s: unsupported kind %q", def.Name, def.Kind)
		}

		bindings = append(bindings, Binding{
			Source: src,
			Schema: schemaFromConfig(def),
			Limit:  def.Limit,
		})
		logger.Debug("source configured",
			zap.String("source", def.Name),
			zap.String("kind", def.Kind))
	}

	r, err := NewRegistry(bindings...)
	if err != nil {
		closeAll()
		return nil, err
	}
	r.closers = closers
	return r, nil
}

func schemaFromConfig(def config.SourceDefinition) normalize.SourceSchema {
	schema := normalize.SourceSchema{
		Source:       def.Name,
		IDField:      def.Schema.IDField,
		ScoreField:   def.Schema.ScoreField,
		ContentField: def.Schema.ContentField,
		IDFrom:       def.Schema.IDFrom,
		Fields:       normalize.DefaultFields(),
	}
	for raw, key := range def.Schema.Fields {
		schema.Fields[raw] = record.Field(key)
	}
	return schema
}

// Names returns the configured source names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		names = append(names, b.Name())
	}
	sort.Strings(names)
	return names
}

// Lookup returns the binding registered under name.
func (r *Registry) Lookup(name string) (Binding, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Binding{}, false
	}
	return r.bindings[i], true
}

// Bindings returns every binding in registration order.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// Len returns the number of configured sources.
func (r *Registry) Len() int {
	return len(r.bindings)
}

// Check pings every source that supports it. Sources without a Ping report nil.
func (r *Registry) Check(ctx context.Context) map[string]error {
	results := make(map[string]error, len(r.bindings))
	for _, b := range r.bindings {
		if p, ok := b.Source.(Pinger); ok {
			results[b.Name()] = p.Ping(ctx)
			continue
		}
		results[b.Name()] = nil
	}
	return results
}

// Close releases the underlying clients.
func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}
