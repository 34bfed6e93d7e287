package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/trend-forecaster/internal/database"
	"github.com/smartwallet/trend-forecaster/internal/models"
)

func newTestCache(t *testing.T) (*ForecastCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &database.RedisClient{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
	t.Cleanup(client.Close)

	return NewForecastCache(client), mr
}

func sampleRecord(currency string) *models.ForecastRecord {
	return &models.ForecastRecord{
		Currency:      currency,
		GeneratedAt:   time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		HistoryPoints: 90,
		Forecast: []models.ForecastPoint{
			{Date: "2026-08-29", Value: 4.3512, ConfLow: 4.3012, ConfHigh: 4.4012},
			{Date: "2026-08-30", Value: 4.3598, ConfLow: 4.3098, ConfHigh: 4.4098},
		},
	}
}

func TestForecastCacheKey(t *testing.T) {
	c, _ := newTestCache(t)

	assert.Equal(t, "wallet:forecast:EUR", c.Key("EUR"))
	assert.Equal(t, "wallet:forecast:EUR", c.Key("eur"))
	assert.Equal(t, "wallet:forecast:USD", c.Key("usd"))
}

func TestForecastCacheSaveLoad(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	record := sampleRecord("EUR")
	require.NoError(t, c.Save(ctx, "EUR", record, time.Hour))

	// Save stamps the persistence time on the record it was given.
	require.NotNil(t, record.CachedAt)
	assert.WithinDuration(t, time.Now(), *record.CachedAt, 5*time.Second)

	loaded, err := c.Load(ctx, "EUR")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, record.Currency, loaded.Currency)
	assert.Equal(t, record.HistoryPoints, loaded.HistoryPoints)
	assert.Equal(t, record.Forecast, loaded.Forecast)
	assert.True(t, record.GeneratedAt.Equal(loaded.GeneratedAt))
	require.NotNil(t, loaded.CachedAt)
	assert.False(t, loaded.FromCache)
}

func TestForecastCacheLoadMiss(t *testing.T) {
	c, _ := newTestCache(t)

	loaded, err := c.Load(context.Background(), "EUR")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestForecastCacheCaseNormalization(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "eur", sampleRecord("EUR"), time.Hour))

	loaded, err := c.Load(ctx, "EUR")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "EUR", loaded.Currency)
}

func TestForecastCacheHas(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	has, err := c.Has(ctx, "EUR")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, c.Save(ctx, "EUR", sampleRecord("EUR"), time.Minute))

	has, err = c.Has(ctx, "eur")
	require.NoError(t, err)
	assert.True(t, has)

	mr.FastForward(2 * time.Minute)

	has, err = c.Has(ctx, "EUR")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestForecastCacheCorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, mr.Set("wallet:forecast:EUR", "{not json"))

	loaded, err := c.Load(context.Background(), "EUR")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestForecastCacheOverwrite(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	first := sampleRecord("EUR")
	first.HistoryPoints = 30
	require.NoError(t, c.Save(ctx, "EUR", first, time.Hour))

	second := sampleRecord("EUR")
	second.HistoryPoints = 90
	require.NoError(t, c.Save(ctx, "EUR", second, time.Hour))

	loaded, err := c.Load(ctx, "EUR")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 90, loaded.HistoryPoints)
}

func TestForecastCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	t.Run("no entry reports -2", func(t *testing.T) {
		ttl, err := c.TTL(ctx, "EUR")
		require.NoError(t, err)
		assert.Equal(t, int64(-2), ttl)
	})

	t.Run("fresh entry reports remaining seconds", func(t *testing.T) {
		require.NoError(t, c.Save(ctx, "EUR", sampleRecord("EUR"), time.Hour))

		ttl, err := c.TTL(ctx, "EUR")
		require.NoError(t, err)
		assert.Greater(t, ttl, int64(0))
		assert.LessOrEqual(t, ttl, int64(3600))
	})

	t.Run("expired entry reports -2 again", func(t *testing.T) {
		require.NoError(t, c.Save(ctx, "GBP", sampleRecord("GBP"), time.Minute))
		mr.FastForward(2 * time.Minute)

		ttl, err := c.TTL(ctx, "GBP")
		require.NoError(t, err)
		assert.Equal(t, int64(-2), ttl)

		loaded, err := c.Load(ctx, "GBP")
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestForecastCacheDefaultTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "EUR", sampleRecord("EUR"), 0))

	// Zero expiry falls back to the default instead of persisting forever.
	ttl := mr.TTL("wallet:forecast:EUR")
	assert.Equal(t, DefaultTTL, ttl)
}

func TestForecastCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "EUR", sampleRecord("EUR"), time.Hour))

	deleted, err := c.Invalidate(ctx, "eur")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	loaded, err := c.Load(ctx, "EUR")
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	// A second invalidation finds nothing to delete.
	deleted, err = c.Invalidate(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestForecastCacheInvalidateAll(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, currency := range []string{"EUR", "USD", "GBP"} {
		require.NoError(t, c.Save(ctx, currency, sampleRecord(currency), time.Hour))
	}
	// A key outside the forecast namespace must survive.
	require.NoError(t, mr.Set("wallet:session:abc", "keep"))

	deleted, err := c.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	for _, currency := range []string{"EUR", "USD", "GBP"} {
		loaded, err := c.Load(ctx, currency)
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	}
	assert.True(t, mr.Exists("wallet:session:abc"))

	deleted, err = c.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
