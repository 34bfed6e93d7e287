package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/smartwallet/trend-forecaster/internal/api"
	"github.com/smartwallet/trend-forecaster/internal/cache"
	"github.com/smartwallet/trend-forecaster/internal/config"
	"github.com/smartwallet/trend-forecaster/internal/database"
	"github.com/smartwallet/trend-forecaster/internal/forecaster"
	"github.com/smartwallet/trend-forecaster/internal/logging"
	"github.com/smartwallet/trend-forecaster/internal/middleware"
	"github.com/smartwallet/trend-forecaster/internal/services"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

func main() {
	// Environment file is optional; real deployments set the variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.Environment)

	if err := telemetry.Init(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		DSN:         cfg.Telemetry.DSN,
		Environment: cfg.Environment,
		Release:     telemetry.ServiceVersion,
		SampleRate:  cfg.Telemetry.SampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	forecastCache := cache.NewForecastCache(redis)
	rateForecaster := forecaster.New(cfg.History)
	forecastService := services.NewForecastService(
		forecastCache,
		rateForecaster,
		time.Duration(cfg.Forecast.CacheTTLSeconds)*time.Second,
		cfg.Forecast.HistoryDays,
		cfg.Forecast.HorizonDays,
	)

	// Start the background refresh loop
	scheduler := services.NewForecastScheduler(forecastCache, rateForecaster, cfg.Forecast)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start forecast scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Setup Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	api.SetupRoutes(router, redis, forecastService, forecastCache, cfg.Forecast.Currencies)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
