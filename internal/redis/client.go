package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saviobatista/trackrescue/internal/types"
)

const (
	trackTTL      = 7 * 24 * time.Hour
	processingTTL = 10 * time.Minute
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client caches decoded tracks keyed by archive digest
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreTrack caches canonical track JSON under the archive digest
func (c *Client) StoreTrack(ctx context.Context, archiveDigest string, canonical []byte) error {
	return c.client.Set(ctx, trackKey(archiveDigest), canonical, trackTTL).Err()
}

// GetTrack returns cached canonical track JSON, or nil when absent
func (c *Client) GetTrack(ctx context.Context, archiveDigest string) ([]byte, error) {
	data, err := c.client.Get(ctx, trackKey(archiveDigest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return data, nil
}

// StoreSummary caches the summary of a decode
func (c *Client) StoreSummary(ctx context.Context, archiveDigest string, summary types.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return c.client.Set(ctx, summaryKey(archiveDigest), data, trackTTL).Err()
}

// GetSummary returns a cached summary, or nil when absent
func (c *Client) GetSummary(ctx context.Context, archiveDigest string) (*types.Summary, error) {
	data, err := c.client.Get(ctx, summaryKey(archiveDigest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var summary types.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}

// MarkProcessing claims an archive for decoding. It returns false when
// another worker already holds the claim.
func (c *Client) MarkProcessing(ctx context.Context, archiveDigest string) (bool, error) {
	ok, err := c.client.SetNX(ctx, processingKey(archiveDigest), "1", processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim archive: %w", err)
	}
	return ok, nil
}

// ReleaseProcessing drops the claim taken by MarkProcessing
func (c *Client) ReleaseProcessing(ctx context.Context, archiveDigest string) error {
	return c.client.Del(ctx, processingKey(archiveDigest)).Err()
}

func trackKey(digest string) string {
	return fmt.Sprintf("track:%s", digest)
}

func summaryKey(digest string) string {
	return fmt.Sprintf("summary:%s", digest)
}

func processingKey(digest string) string {
	return fmt.Sprintf("processing:%s", digest)
}
