package opensearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ca-srg/leakscope/internal/types"
)

type SearchError struct {
	Type       types.ErrorType `json:"type"`
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	Retryable  bool            `json:"retryable"`
	RetryAfter time.Duration   `json:"retry_after,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	cause      error
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (HTTP %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.cause
}

func (e *SearchError) IsRetryable() bool {
	return e.Retryable
}

func NewSearchError(errType types.ErrorType, message string) *SearchError {
	return &SearchError{
		Type:      errType,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now(),
	}
}

func NewRetryableSearchError(errType types.ErrorType, message string, retryAfter time.Duration) *SearchError {
	return &SearchError{
		Type:       errType,
		Message:    message,
		Retryable:  true,
		RetryAfter: retryAfter,
		Timestamp:  time.Now(),
	}
}

func ClassifyHTTPError(statusCode int, body string) *SearchError {
	switch statusCode {
	case http.StatusUnauthorized:
		return &SearchError{
			Type:       types.ErrorTypeAuthentication,
			Message:    "authentication failed",
			StatusCode: statusCode,
			Suggestion: "check OPENSEARCH_USERNAME/OPENSEARCH_PASSWORD or the AWS credentials",
			Timestamp:  time.Now(),
		}
	case http.StatusForbidden:
		return &SearchError{
			Type:       types.ErrorTypeAuthentication,
			Message:    "access denied",
			StatusCode: statusCode,
			Suggestion: "check that the IAM role or user may read the index",
			Timestamp:  time.Now(),
		}
	case http.StatusNotFound:
		return &SearchError{
			Type:       types.ErrorTypeSourceQuery,
			Message:    "index or endpoint not found",
			StatusCode: statusCode,
			Suggestion: "check OPENSEARCH_ENDPOINT and the index names in sources.yaml",
			Timestamp:  time.Now(),
		}
	case http.StatusBadRequest:
		return &SearchError{
			Type:       types.ErrorTypeSourceQuery,
			Message:    fmt.Sprintf("query rejected: %s", truncateBody(body)),
			StatusCode: statusCode,
			Timestamp:  time.Now(),
		}
	case http.StatusRequestTimeout:
		return &SearchError{
			Type:       types.ErrorTypeNetworkTimeout,
			Message:    "request timed out",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: 5 * time.Second,
			Timestamp:  time.Now(),
		}
	case http.StatusTooManyRequests:
		retryAfter := 10 * time.Second
		if strings.Contains(body, "retry after") {
			retryAfter = 30 * time.Second
		}
		return &SearchError{
			Type:       types.ErrorTypeRateLimit,
			Message:    "rate limit reached",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: retryAfter,
			Suggestion: "lower OPENSEARCH_RATE_LIMIT",
			Timestamp:  time.Now(),
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &SearchError{
			Type:       types.ErrorTypeSourceConnection,
			Message:    "OpenSearch server error",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: 10 * time.Second,
			Timestamp:  time.Now(),
		}
	default:
		return &SearchError{
			Type:       types.ErrorTypeUnknown,
			Message:    fmt.Sprintf("unexpected HTTP error: %s", truncateBody(body)),
			StatusCode: statusCode,
			Retryable:  statusCode >= 500,
			RetryAfter: 5 * time.Second,
			Timestamp:  time.Now(),
		}
	}
}

func ClassifyConnectionError(err error) *SearchError {
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return searchErr
	}

	if errors.Is(err, context.Canceled) {
		return &SearchError{
			Type:      types.ErrorTypeCanceled,
			Message:   "request canceled",
			Timestamp: time.Now(),
			cause:     err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &SearchError{
			Type:      types.ErrorTypeTimeout,
			Message:   "deadline exceeded",
			Timestamp: time.Now(),
			cause:     err,
		}
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "timeout") {
		return &SearchError{
			Type:       types.ErrorTypeNetworkTimeout,
			Message:    "connection to OpenSearch timed out",
			Retryable:  true,
			RetryAfter: 5 * time.Second,
			Suggestion: "check network connectivity and OPENSEARCH_ENDPOINT",
			Timestamp:  time.Now(),
			cause:      err,
		}
	}

	if strings.Contains(errMsg, "connection refused") {
		return &SearchError{
			Type:       types.ErrorTypeSourceConnection,
			Message:    "connection to OpenSearch refused",
			Suggestion: "check the OPENSEARCH_ENDPOINT host and port",
			Timestamp:  time.Now(),
			cause:      err,
		}
	}

	if strings.Contains(errMsg, "no such host") {
		return &SearchError{
			Type:       types.ErrorTypeSourceConnection,
			Message:    "OpenSearch host not found",
			Suggestion: "check the OPENSEARCH_ENDPOINT host name",
			Timestamp:  time.Now(),
			cause:      err,
		}
	}

	if strings.Contains(errMsg, "index_not_found_exception") {
		return &SearchError{
			Type:      types.ErrorTypeSourceQuery,
			Message:   "index not found",
			Timestamp: time.Now(),
			cause:     err,
		}
	}

	return &SearchError{
		Type:       types.ErrorTypeUnknown,
		Message:    fmt.Sprintf("connection error: %v", err),
		Retryable:  true,
		RetryAfter: 10 * time.Second,
		Timestamp:  time.Now(),
		cause:      err,
	}
}

func truncateBody(body string) string {
	const max = 200
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}
