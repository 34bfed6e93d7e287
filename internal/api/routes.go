package api

import (
	"github.com/gin-gonic/gin"

	"github.com/smartwallet/trend-forecaster/internal/api/handlers"
	"github.com/smartwallet/trend-forecaster/internal/cache"
	"github.com/smartwallet/trend-forecaster/internal/database"
	"github.com/smartwallet/trend-forecaster/internal/services"
)

func SetupRoutes(router *gin.Engine, redis *database.RedisClient, forecastService *services.ForecastService, forecastCache *cache.ForecastCache, currencies []string) {
	healthHandler := handlers.NewHealthHandler(redis)
	forecastHandler := handlers.NewForecastHandler(forecastService, forecastCache, currencies)

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		analytics := v1.Group("/wallet/analytics")
		{
			analytics.GET("/currencies", forecastHandler.ListCurrencies)
			analytics.GET("/forecast/:currency", forecastHandler.GetForecast)
			analytics.GET("/forecast/:currency/status", forecastHandler.GetForecastStatus)
			analytics.DELETE("/forecast/:currency/cache", forecastHandler.InvalidateForecast)
			analytics.DELETE("/forecast/cache", forecastHandler.InvalidateAllForecasts)
		}
	}
}
