package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartwallet/trend-forecaster/internal/database"
	"github.com/smartwallet/trend-forecaster/internal/models"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

const (
	// ForecastKeyPrefix namespaces every cached forecast.
	ForecastKeyPrefix = "wallet:forecast:"

	// DefaultTTL is the expiry applied when the writer does not override it.
	DefaultTTL = time.Hour
)

// ForecastCache stores serialized forecast records in Redis under
// case-normalized keys. A missing, expired or unreadable entry is reported
// as absent (nil record, nil error), never as a failure the caller has to
// distinguish.
type ForecastCache struct {
	redis  *database.RedisClient
	logger *slog.Logger
}

func NewForecastCache(redisClient *database.RedisClient) *ForecastCache {
	return &ForecastCache{
		redis:  redisClient,
		logger: telemetry.Logger(),
	}
}

// Key returns the cache key for a currency. Codes are uppercased so "eur"
// and "EUR" address the same entry.
func (c *ForecastCache) Key(currency string) string {
	return ForecastKeyPrefix + strings.ToUpper(currency)
}

// Save stamps the record with the persistence timestamp, serializes it and
// writes it under the currency's key with the given expiry, overwriting any
// prior value unconditionally.
func (c *ForecastCache) Save(ctx context.Context, currency string, record *models.ForecastRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	record.CachedAt = &now

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize forecast for %s: %w", currency, err)
	}

	if err := c.redis.Set(ctx, c.Key(currency), data, ttl); err != nil {
		return fmt.Errorf("failed to cache forecast for %s: %w", currency, err)
	}

	return nil
}

// Load reads and deserializes the cached forecast for a currency. Absent
// entries and corrupt payloads both return (nil, nil); only store errors
// surface as an error.
func (c *ForecastCache) Load(ctx context.Context, currency string) (*models.ForecastRecord, error) {
	data, err := c.redis.Get(ctx, c.Key(currency))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached forecast for %s: %w", currency, err)
	}

	var record models.ForecastRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// A corrupt entry behaves like a miss; the next write replaces it.
		c.logger.Warn("Dropping unreadable cached forecast", "currency", currency, "error", err)
		return nil, nil
	}

	return &record, nil
}

// Has reports whether a forecast is cached for the currency without reading
// the payload. Cheaper than Load for availability listings.
func (c *ForecastCache) Has(ctx context.Context, currency string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.Key(currency))
	if err != nil {
		return false, fmt.Errorf("failed to check cached forecast for %s: %w", currency, err)
	}
	return n > 0, nil
}

// Invalidate removes the cached forecast for one currency and reports how
// many keys were deleted (0 or 1).
func (c *ForecastCache) Invalidate(ctx context.Context, currency string) (int64, error) {
	deleted, err := c.redis.Delete(ctx, c.Key(currency))
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate forecast for %s: %w", currency, err)
	}
	return deleted, nil
}

// InvalidateAll scans the forecast namespace and removes every entry,
// returning the number of keys deleted.
func (c *ForecastCache) InvalidateAll(ctx context.Context) (int64, error) {
	keys, err := c.redis.KeysByPrefix(ctx, ForecastKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to scan forecast cache: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.redis.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate forecast cache: %w", err)
	}
	return deleted, nil
}

// TTL returns the remaining validity of a cached forecast in seconds,
// following the Redis convention: -2 when no entry exists, -1 when the
// entry has no expiry (which should not happen since every write sets one).
func (c *ForecastCache) TTL(ctx context.Context, currency string) (int64, error) {
	d, err := c.redis.TTL(ctx, c.Key(currency))
	if err != nil {
		return -2, fmt.Errorf("failed to read forecast TTL for %s: %w", currency, err)
	}
	if d < 0 {
		// go-redis reports the -1/-2 sentinels as raw negative durations.
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}
