package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ca-srg/leakscope/internal/opensearch"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/redisearch"
	"github.com/ca-srg/leakscope/internal/types"
)

var (
	// ErrAllSourcesFailed is returned when no dispatched source produced a result.
	ErrAllSourcesFailed = errors.New("all sources failed")

	// ErrInvalidQuery is the sentinel for caller errors detected before dispatch.
	ErrInvalidQuery = record.ErrInvalidQuery
)

// SourceError records why one source did not contribute to a search.
type SourceError struct {
	Source string
	Type   types.ErrorType
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Type, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Timeout reports whether the source missed the query deadline.
func (e *SourceError) Timeout() bool {
	return e.Type == types.ErrorTypeTimeout
}

// AllSourcesFailedError lists the per-source failures behind ErrAllSourcesFailed.
type AllSourcesFailedError struct {
	Failures []*SourceError
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return ErrAllSourcesFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *AllSourcesFailedError) Is(target error) bool {
	return target == ErrAllSourcesFailed
}

func (e *AllSourcesFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

func invalidQuery(format string, args ...any) error {
	return &record.InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

// classifySourceError maps a source failure onto the shared error taxonomy.
func classifySourceError(err error) types.ErrorType {
	var searchErr *opensearch.SearchError
	var redisErr *redisearch.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return types.ErrorTypeCanceled
	case errors.As(err, &searchErr):
		return searchErr.Type
	case errors.Is(err, redisearch.ErrIndexNotFound):
		return types.ErrorTypeSourceQuery
	case errors.As(err, &redisErr):
		return types.ErrorTypeSourceResponse
	default:
		return types.ErrorTypeUnknown
	}
}
