package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartwallet/trend-forecaster/internal/cache"
	"github.com/smartwallet/trend-forecaster/internal/config"
	"github.com/smartwallet/trend-forecaster/internal/forecaster"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

const (
	// currencyPause throttles successive upstream history fetches in a pass.
	currencyPause = time.Second
	// passCooldown delays the loop after a pass dies unexpectedly.
	passCooldown = 60 * time.Second
)

// ForecastScheduler keeps the forecast cache warm: a background loop
// recomputes every configured currency on a fixed interval, independent of
// inbound traffic. The scheduler is either Stopped or Running; Start on a
// running scheduler is a caller bug and fails loudly, Stop on a stopped one
// is a no-op.
type ForecastScheduler struct {
	cache       *cache.ForecastCache
	forecaster  ForecastProvider
	currencies  []string
	interval    time.Duration
	historyDays int
	horizonDays int
	pause       time.Duration
	cooldown    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewForecastScheduler(forecastCache *cache.ForecastCache, provider ForecastProvider, cfg config.ForecastConfig) *ForecastScheduler {
	interval := time.Duration(cfg.UpdateIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	historyDays := cfg.HistoryDays
	if historyDays <= 0 {
		historyDays = forecaster.DefaultHistoryDays
	}
	horizonDays := cfg.HorizonDays
	if horizonDays <= 0 {
		horizonDays = forecaster.DefaultHorizonDays
	}

	return &ForecastScheduler{
		cache:       forecastCache,
		forecaster:  provider,
		currencies:  cfg.Currencies,
		interval:    interval,
		historyDays: historyDays,
		horizonDays: horizonDays,
		pause:       currencyPause,
		cooldown:    passCooldown,
		logger:      telemetry.Logger(),
	}
}

// Start launches the background refresh loop and returns without blocking.
// It fails if the scheduler is already running.
func (s *ForecastScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("forecast scheduler is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	return nil
}

// Stop signals the loop to terminate, waits for it to exit and transitions
// back to Stopped. Calling Stop on a stopped scheduler does nothing.
func (s *ForecastScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Stopping forecast scheduler")
	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.logger.Info("Forecast scheduler stopped")
}

// IsRunning reports whether the background loop is alive.
func (s *ForecastScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// run is the background loop: one full pass immediately on entry, then one
// pass per interval until cancelled.
func (s *ForecastScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.logger.Info("Forecast scheduler started",
		"interval", s.interval.String(),
		"currencies", s.currencies)

	s.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Forecast scheduler loop cancelled")
			return
		case <-time.After(s.interval):
			s.runPass(ctx)
		}
	}
}

// runPass executes one refresh pass. A panic inside the pass is logged and
// absorbed so the loop survives; the next pass is delayed by a cooldown
// instead of running immediately against a misbehaving dependency.
func (s *ForecastScheduler) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.RecoverPanic(r)
			s.logger.Error("Forecast refresh pass failed unexpectedly", "panic", r)
			select {
			case <-ctx.Done():
			case <-time.After(s.cooldown):
			}
		}
	}()

	s.UpdateAll(ctx)
}

// UpdateAll recomputes and re-caches the forecast for every configured
// currency in order, always bypassing the cache-first path. Entries are
// written with TTL equal to the refresh interval so they expire shortly
// after the pass that should replace them. A failing currency is recorded
// and skipped, never aborting the rest of the pass; cancellation between
// currencies ends the pass promptly.
func (s *ForecastScheduler) UpdateAll(ctx context.Context) map[string]bool {
	s.logger.Info("Starting forecast refresh pass", "currencies", len(s.currencies))
	results := make(map[string]bool, len(s.currencies))

	for i, currency := range s.currencies {
		if ctx.Err() != nil {
			s.logger.Info("Forecast refresh pass interrupted", "completed", i, "total", len(s.currencies))
			return results
		}

		results[currency] = s.updateCurrency(ctx, currency)

		// Pause between currencies to throttle the history source.
		if i < len(s.currencies)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(s.pause):
			}
		}
	}

	successful := 0
	for _, ok := range results {
		if ok {
			successful++
		}
	}
	s.logger.Info("Forecast refresh pass completed",
		"successful", successful,
		"total", len(s.currencies))

	return results
}

// updateCurrency recomputes one currency and writes the result to the
// cache. Both the computation and the write degrade to a logged failure.
func (s *ForecastScheduler) updateCurrency(ctx context.Context, currency string) bool {
	record, err := s.forecaster.GetForecast(ctx, currency, s.historyDays, s.horizonDays)
	if err != nil {
		telemetry.CaptureException(err)
		s.logger.Warn("Forecast refresh failed", "currency", currency, "error", err)
		return false
	}

	if err := s.cache.Save(ctx, currency, record, s.interval); err != nil {
		telemetry.CaptureException(err)
		s.logger.Warn("Failed to cache refreshed forecast", "currency", currency, "error", err)
		return false
	}

	s.logger.Debug("Forecast refreshed", "currency", currency, "history_points", record.HistoryPoints)
	return true
}
