package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/leakscope/internal/correlate"
	"github.com/ca-srg/leakscope/internal/logger"
	"github.com/ca-srg/leakscope/internal/normalize"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/scoring"
	"github.com/ca-srg/leakscope/internal/source"
	"github.com/ca-srg/leakscope/internal/types"
)

const (
	DefaultDeadline       = 10 * time.Second
	DefaultPerSourceLimit = 100
	DefaultWorkers        = 8
)

// Config tunes the query engine.
type Config struct {
	DefaultDeadline time.Duration
	PerSourceLimit  int
	Workers         int
	Weights         scoring.Weights
	HighlightWidth  int
	MaxHighlights   int
}

// ConfigFromTypes extracts the engine settings from the application config.
func ConfigFromTypes(cfg *types.Config) Config {
	return Config{
		DefaultDeadline: cfg.SearchDefaultDeadline,
		PerSourceLimit:  cfg.SearchPerSourceLimit,
		Workers:         cfg.SearchWorkers,
		Weights: scoring.Weights{
			Coverage:   cfg.ScoreCoverageWeight,
			FieldBonus: cfg.ScoreFieldBonus,
			Native:     cfg.ScoreNativeWeight,
		},
		HighlightWidth: cfg.HighlightWidth,
		MaxHighlights:  cfg.HighlightMax,
	}
}

// Engine fans a query out to every selected source, then merges, scores and
// optionally correlates whatever arrived before the deadline.
type Engine struct {
	registry *source.Registry
	scorer   *scoring.Scorer
	cfg      Config
	logger   *zap.Logger
	metrics  *telemetry

	now   func() time.Time
	newID func() string
}

// NewEngine returns an engine over the given registry.
func NewEngine(registry *source.Registry, cfg Config, logger *zap.Logger) (*Engine, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = DefaultDeadline
	}
	if cfg.PerSourceLimit <= 0 {
		cfg.PerSourceLimit = DefaultPerSourceLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Weights == (scoring.Weights{}) {
		cfg.Weights = scoring.DefaultWeights()
	}

	return &Engine{
		registry: registry,
		scorer:   scoring.NewScorer(cfg.Weights, cfg.HighlightWidth, cfg.MaxHighlights),
		cfg:      cfg,
		logger:   logger,
		metrics:  newTelemetry(),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Sources returns the configured source names.
func (e *Engine) Sources() []string {
	return e.registry.Names()
}

// SearchText builds a query from text and options and runs it.
func (e *Engine) SearchText(ctx context.Context, text string, opts record.Options) (*record.ResultSet, error) {
	q, err := record.NewQuery(text, opts)
	if err != nil {
		return nil, err
	}
	return e.Search(ctx, q)
}

type outcome struct {
	index    int
	hits     []record.RawHit
	err      error
	duration time.Duration
}

// Search runs q against every selected source. Sources that fail or miss the
// deadline are reported in the result's source statuses and mark it truncated;
// an error is returned only for invalid queries, caller cancellation, or when
// no source produced a result at all.
func (e *Engine) Search(ctx context.Context, q record.Query) (*record.ResultSet, error) {
	start := e.now()
	ctx, span := searchTracer.Start(ctx, "search.query")
	defer span.End()

	log := e.logger.With(logger.Query(q.Text()))

	bindings, err := e.selectBindings(q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_query")
		e.metrics.recordSearch(ctx, "invalid", false, time.Since(start))
		return nil, err
	}

	deadline := q.Deadline()
	if deadline <= 0 {
		deadline = e.cfg.DefaultDeadline
	}
	span.SetAttributes(
		attribute.Int("search.sources", len(bindings)),
		attribute.Int64("search.deadline_ms", deadline.Milliseconds()),
		attribute.Bool("search.correlate", q.Correlate()),
	)

	results := e.dispatch(ctx, bindings, q.Text(), deadline)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canceled")
		e.metrics.recordSearch(ctx, "canceled", false, time.Since(start))
		return nil, err
	}

	statuses := make([]record.SourceStatus, len(bindings))
	var failures []*SourceError
	truncated := false
	for i, b := range bindings {
		status, failure := e.settle(b, results[i], deadline)
		statuses[i] = status
		if failure != nil {
			failures = append(failures, failure)
			log.Warn("source did not complete",
				zap.String("source", failure.Source),
				zap.String("error_type", string(failure.Type)),
				zap.Error(failure.Err))
		}
		if status.State != record.SourceOK {
			truncated = true
		}
		e.metrics.recordSource(ctx, status)
	}

	if len(failures) == len(bindings) {
		err := &AllSourcesFailedError{Failures: failures}
		span.RecordError(err)
		span.SetStatus(codes.Error, "all_sources_failed")
		e.metrics.recordSearch(ctx, "failed", true, time.Since(start))
		log.Error("all sources failed", zap.Int("sources", len(bindings)))
		return nil, err
	}

	records, err := e.process(ctx, bindings, results, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing_failed")
		e.metrics.recordSearch(ctx, "failed", truncated, time.Since(start))
		return nil, err
	}

	rs := &record.ResultSet{
		ID:         e.newID(),
		Query:      q,
		CreatedAt:  e.now().UTC(),
		Truncated:  truncated,
		Correlated: q.Correlate(),
		Sources:    statuses,
	}
	if q.Correlate() {
		rs.Groups = correlate.Correlate(records)
	} else {
		rs.Records = records
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("search.records", len(records)),
		attribute.Int("search.groups", len(rs.Groups)),
		attribute.Bool("search.truncated", truncated),
	)
	span.SetStatus(codes.Ok, "search_completed")
	e.metrics.recordSearch(ctx, "ok", truncated, elapsed)
	log.Info("search completed",
		zap.String("result_id", rs.ID),
		zap.Int("records", len(records)),
		zap.Int("groups", len(rs.Groups)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", elapsed))

	return rs, nil
}

func (e *Engine) selectBindings(q record.Query) ([]source.Binding, error) {
	if q.IsZero() {
		return nil, invalidQuery("query must be at least %d characters", record.MinQueryLength)
	}
	for _, name := range q.SourceFilter() {
		if _, ok := e.registry.Lookup(name); !ok {
			return nil, invalidQuery("unknown source %q", name)
		}
	}

	selected := make([]source.Binding, 0, e.registry.Len())
	for _, b := range e.registry.Bindings() {
		if q.Selects(b.Name()) {
			selected = append(selected, b)
		}
	}
	return selected, nil
}

func (e *Engine) limitFor(b source.Binding) int {
	if b.Limit > 0 {
		return b.Limit
	}
	return e.cfg.PerSourceLimit
}

// dispatch queries every binding concurrently and returns the outcomes that
// arrived before the deadline, indexed like bindings. Missing entries are nil.
func (e *Engine) dispatch(ctx context.Context, bindings []source.Binding, text string, deadline time.Duration) []*outcome {
	dctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so late sources never block after collection stops.
	ch := make(chan outcome, len(bindings))
	g, gctx := errgroup.WithContext(dctx)
	for i, b := range bindings {
		g.Go(func() error {
			ch <- e.query(gctx, i, b, text)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(ch)
	}()

	results := make([]*outcome, len(bindings))
collect:
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				break collect
			}
			results[o.index] = &o
		case <-dctx.Done():
			// Keep whatever settled together with the deadline.
			for {
				select {
				case o, ok := <-ch:
					if !ok {
						break collect
					}
					results[o.index] = &o
				default:
					break collect
				}
			}
		}
	}
	return results
}

func (e *Engine) query(ctx context.Context, index int, b source.Binding, text string) outcome {
	ctx, span := searchTracer.Start(ctx, "search.source",
		trace.WithAttributes(attribute.String("search.source", b.Name())))
	defer span.End()

	limit := e.limitFor(b)
	start := time.Now()
	hits, err := b.Source.Query(ctx, text, limit)
	o := outcome{index: index, err: err, duration: time.Since(start)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source_failed")
		return o
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	o.hits = hits
	span.SetAttributes(attribute.Int("search.source.hits", len(hits)))
	return o
}

// settle turns one dispatch outcome into its reported status.
func (e *Engine) settle(b source.Binding, o *outcome, deadline time.Duration) (record.SourceStatus, *SourceError) {
	status := record.SourceStatus{Name: b.Name()}
	if o == nil {
		status.State = record.SourceTimeout
		status.Duration = deadline
		status.Error = "deadline exceeded"
		return status, &SourceError{Source: b.Name(), Type: types.ErrorTypeTimeout, Err: context.DeadlineExceeded}
	}

	status.Duration = o.duration
	if o.err != nil {
		failure := &SourceError{Source: b.Name(), Type: classifySourceError(o.err), Err: o.err}
		status.State = record.SourceError
		if failure.Timeout() {
			status.State = record.SourceTimeout
		}
		status.Error = o.err.Error()
		return status, failure
	}

	status.Hits = len(o.hits)
	status.State = record.SourceOK
	if len(o.hits) >= e.limitFor(b) {
		status.State = record.SourceCapped
	}
	return status, nil
}

// process normalizes and scores every batch on a bounded worker pool, then
// de-duplicates and sorts the merged records.
func (e *Engine) process(ctx context.Context, bindings []source.Binding, results []*outcome, q record.Query) ([]record.Record, error) {
	pool, err := ants.NewPool(e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	batches := make([][]record.Record, len(results))
	var wg sync.WaitGroup
	for i, o := range results {
		if o == nil || o.err != nil || len(o.hits) == 0 {
			continue
		}
		schema := bindings[i].Schema
		hits := o.hits
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			batch := normalize.NormalizeBatch(hits, schema)
			for j := range batch {
				batch[j] = e.scorer.Apply(batch[j], q)
			}
			batches[i] = batch
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit batch for %s: %w", bindings[i].Name(), err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merge(batches), nil
}

// merge flattens batches, keeping the higher-scored record for duplicate keys.
func merge(batches [][]record.Record) []record.Record {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	merged := make([]record.Record, 0, total)
	seen := make(map[string]int, total)
	for _, batch := range batches {
		for _, rec := range batch {
			key := rec.Key()
			if i, ok := seen[key]; ok {
				if rec.Score > merged[i].Score {
					merged[i] = rec
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, rec)
		}
	}
	record.SortRecords(merged)
	return merged
}
