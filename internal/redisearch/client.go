package redisearch

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
)

// Config holds connection parameters for a RediSearch-compatible server
// (Redis Stack, Redis 8+ or Valkey Search).
type Config struct {
	Addrs    []string
	Username string
	Password string
}

// Client runs full-text lookups over FT.SEARCH.
type Client struct {
	client rueidis.Client
}

// NewClient connects via rueidis.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH parsing expects the RESP2 array layout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{client: client}, nil
}

// NewClientForTest wraps an existing rueidis client.
func NewClientForTest(c rueidis.Client) *Client {
	return &Client{client: c}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (c *Client) Close() {
	c.client.Close()
}
