package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// stageTTL bounds how long progress markers outlive a render
const stageTTL = 24 * time.Hour

// Cache provides the rendered-title index and render progress tracking on Redis
type Cache struct {
	client   *redis.Client
	titleTTL time.Duration
}

// NewCache creates a new cache instance
func NewCache(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, titleTTL: cfg.TitleTTL}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Rendered title index

func titleKey(source, title string) string {
	return fmt.Sprintf("rendered:%s:%s", source, models.NormalizeTitle(title))
}

// IsRendered reports whether a post with this title from source was already rendered
func (c *Cache) IsRendered(ctx context.Context, source, title string) (bool, error) {
	n, err := c.client.Exists(ctx, titleKey(source, title)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rendered title: %w", err)
	}
	return n > 0, nil
}

// MarkRendered records the title so later submissions are skipped. A zero
// TitleTTL keeps the entry forever.
func (c *Cache) MarkRendered(ctx context.Context, source, title string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := c.client.Set(ctx, titleKey(source, title), stamp, c.titleTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark title rendered: %w", err)
	}
	return nil
}

// ForgetRendered removes a title from the index so it can be rendered again
func (c *Cache) ForgetRendered(ctx context.Context, source, title string) error {
	return c.client.Del(ctx, titleKey(source, title)).Err()
}

// Render progress

// SetStage records the pipeline stage a render is currently in
func (c *Cache) SetStage(ctx context.Context, renderID, stage string) error {
	key := fmt.Sprintf("render:stage:%s", renderID)
	return c.client.Set(ctx, key, stage, stageTTL).Err()
}

// GetStage returns the last recorded stage, or "" when none is known
func (c *Cache) GetStage(ctx context.Context, renderID string) (string, error) {
	key := fmt.Sprintf("render:stage:%s", renderID)
	stage, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheAccess("stage", false)
			return "", nil
		}
		return "", fmt.Errorf("failed to get render stage: %w", err)
	}
	metrics.RecordCacheAccess("stage", true)
	return stage, nil
}

// SetRender caches render metadata
func (c *Cache) SetRender(ctx context.Context, render *models.Render, ttl time.Duration) error {
	data, err := json.Marshal(render)
	if err != nil {
		return fmt.Errorf("failed to marshal render: %w", err)
	}

	key := fmt.Sprintf("render:%s", render.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetRender retrieves render metadata from cache
func (c *Cache) GetRender(ctx context.Context, renderID string) (*models.Render, error) {
	key := fmt.Sprintf("render:%s", renderID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheAccess("render", false)
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get render from cache: %w", err)
	}
	metrics.RecordCacheAccess("render", true)

	var render models.Render
	if err := json.Unmarshal(data, &render); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render: %w", err)
	}

	return &render, nil
}

// DeleteRender removes render from cache
func (c *Cache) DeleteRender(ctx context.Context, renderID string) error {
	key := fmt.Sprintf("render:%s", renderID)
	return c.client.Del(ctx, key).Err()
}

// Locking Operations for Distributed Systems

// AcquireLock attempts to acquire a distributed lock
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}
