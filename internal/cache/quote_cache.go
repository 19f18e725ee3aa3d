package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Providers whose quotes are cached.
const (
	ProviderDAT          = "dat"
	ProviderGreenScreens = "greenscreens"
)

const keyPrefix = "quote:"

// quoteEntry wraps a cached provider payload with metadata
type quoteEntry struct {
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
}

// QuoteCacheStats tracks cache performance
type QuoteCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// QuoteCache stores market-rate responses in Redis so identical lanes
// priced within the TTL skip the provider. A nil Redis client disables it.
type QuoteCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	mu    sync.Mutex
	stats QuoteCacheStats
}

func NewQuoteCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *QuoteCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &QuoteCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Key builds quote:{provider}:{lane}:{equipment}:{date}. It is safe on a
// nil cache.
func (c *QuoteCache) Key(provider string, q models.LaneQuery) string {
	lane := fmt.Sprintf("%s,%s-%s,%s", q.OriginCity, q.OriginState, q.DestCity, q.DestState)
	lane = strings.ToUpper(strings.ReplaceAll(lane, " ", "_"))
	key := fmt.Sprintf("%s%s:%s:%s:%s", keyPrefix, provider, lane, strings.ToUpper(q.Equipment), q.PickupDate.Format("2006-01-02"))
	if provider == ProviderDAT && q.EstimatedMiles > 0 {
		key += fmt.Sprintf(":%.0f", q.EstimatedMiles)
	}
	return key
}

// Get decodes the cached payload for key into dest and reports whether it
// was found.
func (c *QuoteCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.count(func(s *QuoteCacheStats) { s.Misses++ })
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Quote cache read failed")
		c.count(func(s *QuoteCacheStats) { s.Errors++; s.Misses++ })
		return false
	}

	var entry quoteEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Quote cache entry is corrupt")
		c.count(func(s *QuoteCacheStats) { s.Errors++; s.Misses++ })
		return false
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.count(func(s *QuoteCacheStats) { s.Errors++; s.Misses++ })
		return false
	}

	c.count(func(s *QuoteCacheStats) { s.Hits++ })
	return true
}

// Set stores value under key with the cache TTL. Failures are logged only.
func (c *QuoteCache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.redis == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Quote cache encode failed")
		return
	}
	data, err := json.Marshal(quoteEntry{Payload: payload, CachedAt: time.Now()})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Quote cache write failed")
		c.count(func(s *QuoteCacheStats) { s.Errors++ })
		return
	}
	c.count(func(s *QuoteCacheStats) { s.Sets++ })
}

// Stats returns a copy of the counters. A nil cache reports zeros.
func (c *QuoteCache) Stats() QuoteCacheStats {
	if c == nil {
		return QuoteCacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *QuoteCache) count(fn func(*QuoteCacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
