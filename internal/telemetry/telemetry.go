package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	ServiceName    = "trend-forecaster"
	ServiceVersion = "1.0.0"
)

// Config holds configuration for telemetry
type Config struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Init initializes Sentry error reporting. A disabled config is a no-op.
func Init(config Config) error {
	if !config.Enabled {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		TracesSampleRate: config.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	return nil
}

// Flush flushes buffered events
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureException reports an error to Sentry if telemetry is active.
func CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// RecoverPanic reports a recovered panic value and returns it unchanged.
// Intended for use in long-lived background goroutines.
func RecoverPanic(recovered interface{}) interface{} {
	if recovered != nil {
		sentry.CurrentHub().Recover(recovered)
	}
	return recovered
}

// Logger returns the global slog.Logger instance for application logging
func Logger() *slog.Logger {
	return slog.Default()
}
