package forecaster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smartwallet/trend-forecaster/internal/config"
	"github.com/smartwallet/trend-forecaster/internal/models"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

const (
	// DefaultHistoryDays is the training window requested from the backend.
	DefaultHistoryDays = 90
	// DefaultHorizonDays is the number of future days predicted per run.
	DefaultHorizonDays = 7

	// confidenceMultiplier is the two-sided ~95% normal-approximation band.
	confidenceMultiplier = 1.96

	historyPath = "/api/multi-currency-wallet/history"
)

// Forecaster computes exchange-rate forecasts from historical data served
// by the wallet backend. It holds no state between invocations; every
// forecast is a pure function of the remote data at the time of the call.
type Forecaster struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New creates a forecaster talking to the configured history source.
func New(cfg config.HistoryConfig) *Forecaster {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Forecaster{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  telemetry.Logger(),
	}
}

// FetchHistory requests the rate history for a currency from the wallet
// backend. Non-2xx responses, transport errors and payloads missing the
// success/history envelope all yield an error; callers degrade that to
// "no forecast" rather than failing the process.
func (f *Forecaster) FetchHistory(ctx context.Context, currency string, days int) ([]models.RawHistoryPoint, error) {
	params := url.Values{}
	params.Set("currency", currency)
	params.Set("days", strconv.Itoa(days))
	reqURL := fmt.Sprintf("%s%s?%s", f.baseURL, historyPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	var payload models.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	if !payload.Success || payload.History == nil {
		return nil, fmt.Errorf("history response for %s reported no data", currency)
	}

	return payload.History, nil
}

// PrepareData cleans raw history rows into a training series: rows with an
// unparseable date or rate are dropped, the rest are sorted ascending by
// date, deduplicated by date keeping the last occurrence, and assigned
// contiguous day indices starting at zero.
func (f *Forecaster) PrepareData(raw []models.RawHistoryPoint) (models.HistorySeries, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no history rows to prepare")
	}

	cleaned := make(models.HistorySeries, 0, len(raw))
	for _, row := range raw {
		date, err := parseDate(row.Date)
		if err != nil {
			continue
		}
		rate, ok := coerceRate(row.Rate)
		if !ok {
			continue
		}
		cleaned = append(cleaned, models.HistoryPoint{Date: date, Rate: rate})
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no usable history rows after cleaning")
	}

	// Stable sort keeps input order among equal dates, so the overwrite
	// below implements last-occurrence-wins deduplication.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Date.Before(cleaned[j].Date)
	})

	series := make(models.HistorySeries, 0, len(cleaned))
	for _, p := range cleaned {
		if n := len(series); n > 0 && series[n-1].Date.Equal(p.Date) {
			series[n-1] = p
			continue
		}
		series = append(series, p)
	}

	for i := range series {
		series[i].DayIndex = i
	}

	return series, nil
}

// Predict fits an ordinary-least-squares line of rate against day index and
// extrapolates horizonDays into the future. The confidence band is a fixed
// 1.96 multiple of the population standard deviation of the training
// residuals; the same margin is reused at every horizon step.
func (f *Forecaster) Predict(series models.HistorySeries, horizonDays int) ([]models.ForecastPoint, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("insufficient data for prediction: need at least 2 points, got %d", len(series))
	}

	slope, intercept := fitLine(series)

	// Population standard deviation of the fit residuals
	var sumSq float64
	for _, p := range series {
		residual := p.Rate - (slope*float64(p.DayIndex) + intercept)
		sumSq += residual * residual
	}
	residualStd := math.Sqrt(sumSq / float64(len(series)))
	margin := confidenceMultiplier * residualStd

	last := series.Last()
	forecast := make([]models.ForecastPoint, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		futureIndex := last.DayIndex + i
		value := slope*float64(futureIndex) + intercept

		forecast = append(forecast, models.ForecastPoint{
			Date:     last.Date.AddDate(0, 0, i).Format("2006-01-02"),
			Value:    round4(value),
			ConfLow:  round4(value - margin),
			ConfHigh: round4(value + margin),
		})
	}

	return forecast, nil
}

// GetForecast runs the full pipeline: fetch, prepare, predict. The first
// failing step short-circuits. CachedAt and FromCache are left unset; they
// belong to the caching layer.
func (f *Forecaster) GetForecast(ctx context.Context, currency string, historyDays, horizonDays int) (*models.ForecastRecord, error) {
	raw, err := f.FetchHistory(ctx, currency, historyDays)
	if err != nil {
		f.logger.Warn("Failed to fetch rate history", "currency", currency, "error", err)
		return nil, err
	}

	series, err := f.PrepareData(raw)
	if err != nil {
		f.logger.Warn("Failed to prepare rate history", "currency", currency, "error", err)
		return nil, err
	}

	forecast, err := f.Predict(series, horizonDays)
	if err != nil {
		f.logger.Warn("Failed to predict rates", "currency", currency, "error", err)
		return nil, err
	}

	return &models.ForecastRecord{
		Currency:      currency,
		GeneratedAt:   time.Now(),
		HistoryPoints: len(series),
		Forecast:      forecast,
	}, nil
}

// fitLine computes the OLS slope and intercept of rate against day index.
func fitLine(series models.HistorySeries) (slope, intercept float64) {
	n := float64(len(series))

	var sumX, sumY float64
	for _, p := range series {
		sumX += float64(p.DayIndex)
		sumY += p.Rate
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den float64
	for _, p := range series {
		dx := float64(p.DayIndex) - meanX
		num += dx * (p.Rate - meanY)
		den += dx * dx
	}

	slope = num / den
	intercept = meanY - slope*meanX
	return slope, intercept
}

// parseDate accepts the backend's plain date format and, as a fallback,
// full RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// coerceRate converts a loosely typed rate value to float64. JSON numbers
// decode as float64; numeric strings are parsed; everything else is
// unusable and the row gets dropped.
func coerceRate(v interface{}) (float64, bool) {
	switch rate := v.(type) {
	case float64:
		return rate, !math.IsNaN(rate)
	case json.Number:
		parsed, err := rate.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(rate), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
