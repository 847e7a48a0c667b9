package opensearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/leakscope/internal/types"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantType  types.ErrorType
		retryable bool
	}{
		{http.StatusUnauthorized, "", types.ErrorTypeAuthentication, false},
		{http.StatusForbidden, "", types.ErrorTypeAuthentication, false},
		{http.StatusNotFound, "", types.ErrorTypeSourceQuery, false},
		{http.StatusBadRequest, "parse_exception", types.ErrorTypeSourceQuery, false},
		{http.StatusRequestTimeout, "", types.ErrorTypeNetworkTimeout, true},
		{http.StatusTooManyRequests, "", types.ErrorTypeRateLimit, true},
		{http.StatusServiceUnavailable, "", types.ErrorTypeSourceConnection, true},
		{http.StatusTeapot, "", types.ErrorTypeUnknown, false},
		{507, "", types.ErrorTypeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyHTTPError(tt.status, tt.body)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.status))
		})
	}
}

func TestClassifyHTTPErrorRateLimitHint(t *testing.T) {
	err := ClassifyHTTPError(http.StatusTooManyRequests, "please retry after a while")
	assert.Equal(t, 30*time.Second, err.RetryAfter)
}

func TestClassifyHTTPErrorTruncatesBody(t *testing.T) {
	err := ClassifyHTTPError(http.StatusBadRequest, strings.Repeat("x", 500))
	assert.Less(t, len(err.Message), 250)
	assert.True(t, strings.HasSuffix(err.Message, "..."))
}

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  types.ErrorType
		retryable bool
	}{
		{"canceled", fmt.Errorf("do: %w", context.Canceled), types.ErrorTypeCanceled, false},
		{"deadline", context.DeadlineExceeded, types.ErrorTypeTimeout, false},
		{"dial timeout", errors.New("dial tcp: i/o timeout"), types.ErrorTypeNetworkTimeout, true},
		{"refused", errors.New("dial tcp 127.0.0.1:9200: connect: connection refused"), types.ErrorTypeSourceConnection, false},
		{"dns", errors.New("lookup search.invalid: no such host"), types.ErrorTypeSourceConnection, false},
		{"index", errors.New("index_not_found_exception"), types.ErrorTypeSourceQuery, false},
		{"other", errors.New("boom"), types.ErrorTypeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectionError(tt.err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.IsRetryable())
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyConnectionErrorKeepsSearchError(t *testing.T) {
	orig := NewSearchError(types.ErrorTypeValidation, "bad")
	got := ClassifyConnectionError(fmt.Errorf("wrapped: %w", orig))
	assert.Same(t, orig, got)
}

func TestNewConfigFromTypes(t *testing.T) {
	cfg, err := NewConfigFromTypes(&types.Config{OpenSearchEndpoint: "https://search.local:9200", OpenSearchRateLimit: 5000, OpenSearchMaxRetries: -1})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000.0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	_, err = NewConfigFromTypes(nil)
	assert.Error(t, err)
	assert.Error(t, (&Config{}).Validate())
}
