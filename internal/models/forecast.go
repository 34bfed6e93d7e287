package models

import "time"

// HistoryResponse is the JSON envelope returned by the wallet backend's
// rate-history endpoint. Anything that does not match this shape is treated
// as "no data" by the forecaster.
type HistoryResponse struct {
	Success bool              `json:"success"`
	History []RawHistoryPoint `json:"history"`
}

// RawHistoryPoint is one row as returned by the history endpoint. Rate is
// kept loosely typed because the upstream serializes it as either a JSON
// number or a numeric string; rows that cannot be coerced are dropped
// during preparation rather than failing the whole series.
type RawHistoryPoint struct {
	Date string      `json:"date"`
	Rate interface{} `json:"rate"`
}

// HistoryPoint is a cleaned training sample. DayIndex is the zero-based
// rank of the point after sorting by date and deduplicating, and is the
// regression feature.
type HistoryPoint struct {
	Date     time.Time `json:"date"`
	Rate     float64   `json:"rate"`
	DayIndex int       `json:"day_index"`
}

// HistorySeries is an ordered, date-deduplicated sequence of history points
// with contiguous day indices 0..n-1.
type HistorySeries []HistoryPoint

// Last returns the final (most recent) point of the series.
func (s HistorySeries) Last() HistoryPoint {
	return s[len(s)-1]
}

// ForecastPoint is a single predicted day. ConfLow and ConfHigh bound the
// prediction with a fixed two-sided ~95% band; the margin is shared by all
// points of one forecast run.
type ForecastPoint struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	ConfLow  float64 `json:"conf_low"`
	ConfHigh float64 `json:"conf_high"`
}

// ForecastRecord is the unit stored in the cache and returned to clients.
// CachedAt is stamped only when the record is persisted; FromCache is set
// only at retrieval time and is never persisted as true.
type ForecastRecord struct {
	Currency      string          `json:"currency"`
	GeneratedAt   time.Time       `json:"generated_at"`
	HistoryPoints int             `json:"history_points"`
	Forecast      []ForecastPoint `json:"forecast"`
	CachedAt      *time.Time      `json:"cached_at,omitempty"`
	FromCache     bool            `json:"from_cache,omitempty"`
}
