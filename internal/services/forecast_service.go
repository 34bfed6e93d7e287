package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartwallet/trend-forecaster/internal/cache"
	"github.com/smartwallet/trend-forecaster/internal/forecaster"
	"github.com/smartwallet/trend-forecaster/internal/models"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

// ForecastProvider computes a forecast for a currency. Satisfied by
// *forecaster.Forecaster; declared here so services can be exercised with
// stubs.
type ForecastProvider interface {
	GetForecast(ctx context.Context, currency string, historyDays, horizonDays int) (*models.ForecastRecord, error)
}

// ForecastService implements the cache-first retrieval policy: return a
// fresh cached forecast when one exists, compute and cache otherwise.
//
// Concurrent calls for the same currency are not serialized. Two
// simultaneous misses may both compute and both write; the later write
// wins. Single Redis operations are atomic per key, so readers always see
// one complete record.
type ForecastService struct {
	cache       *cache.ForecastCache
	forecaster  ForecastProvider
	cacheTTL    time.Duration
	historyDays int
	horizonDays int
	logger      *slog.Logger
}

func NewForecastService(forecastCache *cache.ForecastCache, provider ForecastProvider, cacheTTL time.Duration, historyDays, horizonDays int) *ForecastService {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	if historyDays <= 0 {
		historyDays = forecaster.DefaultHistoryDays
	}
	if horizonDays <= 0 {
		horizonDays = forecaster.DefaultHorizonDays
	}

	return &ForecastService{
		cache:       forecastCache,
		forecaster:  provider,
		cacheTTL:    cacheTTL,
		historyDays: historyDays,
		horizonDays: horizonDays,
		logger:      telemetry.Logger(),
	}
}

// GetOrCompute returns the forecast for a currency, preferring the cache.
// With forceRefresh the cache is bypassed and the entry overwritten. A nil
// record with an error means no forecast is currently available; the
// boundary translates that into a "processing" response.
func (s *ForecastService) GetOrCompute(ctx context.Context, currency string, forceRefresh bool) (*models.ForecastRecord, error) {
	if !forceRefresh {
		cached, err := s.cache.Load(ctx, currency)
		if err != nil {
			// An unreachable store degrades to a miss.
			s.logger.Warn("Forecast cache read failed", "currency", currency, "error", err)
		}
		if cached != nil {
			cached.FromCache = true
			return cached, nil
		}
	}

	record, err := s.forecaster.GetForecast(ctx, currency, s.historyDays, s.horizonDays)
	if err != nil {
		return nil, err
	}

	record.FromCache = false
	if err := s.cache.Save(ctx, currency, record, s.cacheTTL); err != nil {
		// The computed forecast is still served; only reuse is lost.
		s.logger.Warn("Failed to cache computed forecast", "currency", currency, "error", err)
	}

	return record, nil
}

// HasForecast reports cache availability and remaining TTL for a currency
// without deserializing the record. Store failures degrade to "not cached".
func (s *ForecastService) HasForecast(ctx context.Context, currency string) (bool, int64) {
	has, err := s.cache.Has(ctx, currency)
	if err != nil {
		s.logger.Warn("Forecast cache existence check failed", "currency", currency, "error", err)
		return false, 0
	}
	if !has {
		return false, 0
	}

	ttl, err := s.cache.TTL(ctx, currency)
	if err != nil || ttl < 0 {
		ttl = 0
	}
	return true, ttl
}

// CacheStatus reports whether a forecast is cached for the currency and
// how long it remains valid.
func (s *ForecastService) CacheStatus(ctx context.Context, currency string) (*models.ForecastRecord, int64) {
	record, err := s.cache.Load(ctx, currency)
	if err != nil {
		s.logger.Warn("Forecast cache status read failed", "currency", currency, "error", err)
		return nil, -2
	}

	ttl, err := s.cache.TTL(ctx, currency)
	if err != nil {
		s.logger.Warn("Forecast cache TTL read failed", "currency", currency, "error", err)
		ttl = -2
	}

	return record, ttl
}
