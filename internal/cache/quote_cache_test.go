package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis instance using miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return client, s
}

func testLane() models.LaneQuery {
	return models.LaneQuery{
		OriginCity:     "La Junta",
		OriginState:    "CO",
		DestCity:       "Dallas",
		DestState:      "TX",
		Equipment:      "van",
		PickupDate:     time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		EstimatedMiles: 612,
	}
}

func TestQuoteCache_Key(t *testing.T) {
	c := NewQuoteCache(nil, time.Minute, nil)

	assert.Equal(t, "quote:dat:LA_JUNTA,CO-DALLAS,TX:VAN:2025-11-03:612", c.Key(ProviderDAT, testLane()))
	assert.Equal(t, "quote:greenscreens:LA_JUNTA,CO-DALLAS,TX:VAN:2025-11-03", c.Key(ProviderGreenScreens, testLane()))
}

func TestQuoteCache_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewQuoteCache(client, 15*time.Minute, nil)
	ctx := context.Background()

	quote := &models.DATQuote{
		Equipment: "VAN",
		Current:   &models.DATCurrentRate{RateUSD: 2.1, Mileage: 612, TotalForecastUSD: 1515.5},
	}
	key := c.Key(ProviderDAT, testLane())
	c.Set(ctx, key, quote)

	var got models.DATQuote
	require.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, 1515.5, got.CurrentTotal())
	assert.Equal(t, 612.0, got.Mileage())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestQuoteCache_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewQuoteCache(client, time.Minute, nil)

	var got models.DATQuote
	assert.False(t, c.Get(context.Background(), "quote:dat:none", &got))
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestQuoteCache_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewQuoteCache(client, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, "quote:greenscreens:k", &models.GreenScreensQuote{})
	mr.FastForward(2 * time.Minute)

	var got models.GreenScreensQuote
	assert.False(t, c.Get(ctx, "quote:greenscreens:k", &got))
}

func TestQuoteCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewQuoteCache(client, time.Minute, nil)
	require.NoError(t, mr.Set("quote:dat:bad", "not json"))

	var got models.DATQuote
	assert.False(t, c.Get(context.Background(), "quote:dat:bad", &got))
	assert.Equal(t, int64(1), c.Stats().Errors)
}

func TestQuoteCache_Disabled(t *testing.T) {
	c := NewQuoteCache(nil, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, "k", &models.DATQuote{})
	var got models.DATQuote
	assert.False(t, c.Get(ctx, "k", &got))

	var nilCache *QuoteCache
	assert.False(t, nilCache.Get(ctx, "k", &got))
	nilCache.Set(ctx, "k", &models.DATQuote{})
	assert.Equal(t, QuoteCacheStats{}, nilCache.Stats())
}
