package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartwallet/trend-forecaster/internal/models"
)

const (
	defaultForecastDays = 7
	maxForecastDays     = 30
	processingRetrySecs = 30
)

// ForecastRetriever is the slice of the forecast service the handler needs.
type ForecastRetriever interface {
	GetOrCompute(ctx context.Context, currency string, forceRefresh bool) (*models.ForecastRecord, error)
	CacheStatus(ctx context.Context, currency string) (*models.ForecastRecord, int64)
	HasForecast(ctx context.Context, currency string) (bool, int64)
}

// ForecastInvalidator is the slice of the cache the handler needs.
type ForecastInvalidator interface {
	Invalidate(ctx context.Context, currency string) (int64, error)
	InvalidateAll(ctx context.Context) (int64, error)
}

// ForecastHandler exposes the exchange-rate forecast endpoints.
type ForecastHandler struct {
	service    ForecastRetriever
	cache      ForecastInvalidator
	currencies []string
}

func NewForecastHandler(service ForecastRetriever, cache ForecastInvalidator, currencies []string) *ForecastHandler {
	return &ForecastHandler{
		service:    service,
		cache:      cache,
		currencies: currencies,
	}
}

// GetForecast serves GET /forecast/:currency. The response is either the
// (possibly cached) forecast truncated to the requested number of days, or
// a "processing" payload when no forecast is currently available.
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	currency, ok := normalizeCurrency(c)
	if !ok {
		return
	}

	days := defaultForecastDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxForecastDays {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("days must be an integer between 1 and %d", maxForecastDays),
			})
			return
		}
		days = parsed
	}

	forceRefresh := false
	if raw := c.Query("force_refresh"); raw != "" {
		forceRefresh, _ = strconv.ParseBool(raw)
	}

	record, err := h.service.GetOrCompute(c.Request.Context(), currency, forceRefresh)
	if err != nil || record == nil {
		// No forecast right now; the background refresh or a retry will
		// produce one. Never surfaced as a server error.
		c.JSON(http.StatusOK, gin.H{
			"status":              "processing",
			"currency":            currency,
			"message":             fmt.Sprintf("Forecast for %s is not available yet. Please retry shortly.", currency),
			"retry_after_seconds": processingRetrySecs,
		})
		return
	}

	forecast := record.Forecast
	if len(forecast) > days {
		forecast = forecast[:days]
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ready",
		"currency":       record.Currency,
		"generated_at":   record.GeneratedAt,
		"history_points": record.HistoryPoints,
		"from_cache":     record.FromCache,
		"cached_at":      record.CachedAt,
		"forecast":       forecast,
	})
}

// GetForecastStatus serves GET /forecast/:currency/status, a cheap polling
// endpoint reporting cache availability and remaining TTL.
func (h *ForecastHandler) GetForecastStatus(c *gin.Context) {
	currency, ok := normalizeCurrency(c)
	if !ok {
		return
	}

	record, ttl := h.service.CacheStatus(c.Request.Context(), currency)
	if record == nil {
		c.JSON(http.StatusOK, gin.H{
			"available":   false,
			"currency":    currency,
			"ttl_seconds": 0,
		})
		return
	}

	if ttl < 0 {
		ttl = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"available":      true,
		"currency":       currency,
		"ttl_seconds":    ttl,
		"generated_at":   record.GeneratedAt,
		"cached_at":      record.CachedAt,
		"history_points": record.HistoryPoints,
	})
}

// ListCurrencies serves GET /currencies: the set of codes the background
// refresh tracks, each with its current cache availability and remaining
// TTL. This is the discovery surface for clients that do not hardcode the
// currency list.
func (h *ForecastHandler) ListCurrencies(c *gin.Context) {
	currencies := make([]gin.H, 0, len(h.currencies))
	for _, code := range h.currencies {
		has, ttl := h.service.HasForecast(c.Request.Context(), code)
		currencies = append(currencies, gin.H{
			"code":         code,
			"has_forecast": has,
			"ttl_seconds":  ttl,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"currencies": currencies,
		"timestamp":  time.Now(),
	})
}

// InvalidateForecast serves DELETE /forecast/:currency/cache.
func (h *ForecastHandler) InvalidateForecast(c *gin.Context) {
	currency, ok := normalizeCurrency(c)
	if !ok {
		return
	}

	deleted, err := h.cache.Invalidate(c.Request.Context(), currency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to invalidate forecast cache",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"currency": currency,
		"deleted":  deleted,
	})
}

// InvalidateAllForecasts serves DELETE /forecast/cache and clears the whole
// forecast namespace.
func (h *ForecastHandler) InvalidateAllForecasts(c *gin.Context) {
	deleted, err := h.cache.InvalidateAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to invalidate forecast cache",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": deleted,
	})
}

// normalizeCurrency uppercases the path parameter and rejects anything that
// is not a 3-letter alphabetic code before the core is invoked.
func normalizeCurrency(c *gin.Context) (string, bool) {
	currency := strings.ToUpper(strings.TrimSpace(c.Param("currency")))

	valid := len(currency) == 3
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			valid = false
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid currency code: %q, expected a 3-letter ISO code", c.Param("currency")),
		})
		return "", false
	}

	return currency, true
}
