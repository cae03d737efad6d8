package yield

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/curvedesk/internal/order/domain"
)

// CurvePoint is one maturity on a published yield curve.
type CurvePoint struct {
	Term     domain.Term `json:"term"`
	SeriesID string      `json:"series_id"`
	Rate     float64     `json:"rate"`
}

// Curve is a full yield curve snapshot.
type Curve struct {
	Date      domain.Date  `json:"date"`
	Points    []CurvePoint `json:"points"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Cache persists the last good curve so provider outages serve stale data
// instead of failing.
type Cache interface {
	GetCurve(ctx context.Context) (Curve, bool, error)
	PutCurve(ctx context.Context, curve Curve) error
}

const redisCurveKey = "curvedesk:yield:curve"

// RedisCache stores the curve as a JSON blob without expiry; freshness is
// judged from FetchedAt by the reader.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache constructs a cache over the given client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, key: redisCurveKey}
}

func (c *RedisCache) GetCurve(ctx context.Context) (Curve, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Curve{}, false, nil
	}
	if err != nil {
		return Curve{}, false, fmt.Errorf("get curve: %w", err)
	}
	var curve Curve
	if err := json.Unmarshal(raw, &curve); err != nil {
		return Curve{}, false, fmt.Errorf("decode curve: %w", err)
	}
	return curve, true, nil
}

func (c *RedisCache) PutCurve(ctx context.Context, curve Curve) error {
	raw, err := json.Marshal(curve)
	if err != nil {
		return fmt.Errorf("encode curve: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("put curve: %w", err)
	}
	return nil
}

// MemoryCache is the fallback when no redis is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	curve Curve
	ok    bool
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) GetCurve(_ context.Context) (Curve, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.curve, c.ok, nil
}

func (c *MemoryCache) PutCurve(_ context.Context, curve Curve) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.curve = curve
	c.ok = true
	return nil
}
