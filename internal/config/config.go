package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	env "github.com/netflix/go-env"

	"github.com/ca-srg/leakscope/internal/types"
)

// Type alias for Config
type Config = types.Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.RediSearchAddrs = splitList(config.RediSearchAddrsStr)
	config.HTTPAllowedIPs = splitList(config.HTTPAllowedIPsStr)
	config.HTTPTrustedProxies = splitList(config.HTTPTrustedStr)
	config.HTTPAPIKeys = splitList(config.HTTPAPIKeysStr)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// splitList parses a comma-separated environment value, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if config.SearchDefaultDeadline <= 0 {
		config.SearchDefaultDeadline = 10 * time.Second
	}
	if config.SearchDefaultDeadline > 5*time.Minute {
		config.SearchDefaultDeadline = 5 * time.Minute
	}

	if config.SearchPerSourceLimit < 1 {
		config.SearchPerSourceLimit = 1
	}
	if config.SearchPerSourceLimit > 1000 {
		config.SearchPerSourceLimit = 1000
	}

	if config.SearchWorkers < 1 {
		config.SearchWorkers = 1
	}
	if config.SearchWorkers > 64 {
		config.SearchWorkers = 64
	}

	if config.ScoreCoverageWeight < 0 {
		config.ScoreCoverageWeight = 0
	}
	if config.ScoreFieldBonus < 0 {
		config.ScoreFieldBonus = 0
	}
	if config.ScoreNativeWeight < 0 {
		config.ScoreNativeWeight = 0
	}

	if config.HighlightWidth < 20 {
		config.HighlightWidth = 20
	}
	if config.HighlightWidth > 1000 {
		config.HighlightWidth = 1000
	}
	if config.HighlightMax < 1 {
		config.HighlightMax = 1
	}
	if config.HighlightMax > 50 {
		config.HighlightMax = 50
	}

	if config.OpenSearchEndpoint != "" {
		if err := validateOpenSearchConfig(config); err != nil {
			return fmt.Errorf("OpenSearch configuration validation failed: %w", err)
		}
	}

	if config.HTTPPort < 1 || config.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}

	return nil
}

// validateOpenSearchConfig validates OpenSearch-specific configuration
func validateOpenSearchConfig(config *Config) error {
	parsedURL, err := url.Parse(config.OpenSearchEndpoint)
	if err != nil {
		return fmt.Errorf("invalid OPENSEARCH_ENDPOINT URL format: %w", err)
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include scheme (http:// or https://)")
	}

	if !strings.HasPrefix(parsedURL.Scheme, "http") {
		return fmt.Errorf("OPENSEARCH_ENDPOINT scheme must be http or https")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include a valid host")
	}

	if config.OpenSearchRateLimit <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT must be greater than 0")
	}
	if config.OpenSearchRateLimit > 1000 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT cannot exceed 1000 requests/second")
	}

	if config.OpenSearchRateBurst <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_BURST must be greater than 0")
	}

	if config.OpenSearchMaxRetries < 0 {
		return fmt.Errorf("OPENSEARCH_MAX_RETRIES cannot be negative")
	}
	if config.OpenSearchMaxRetries > 10 {
		return fmt.Errorf("OPENSEARCH_MAX_RETRIES cannot exceed 10")
	}

	return nil
}
