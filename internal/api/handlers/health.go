package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartwallet/trend-forecaster/internal/database"
	"github.com/smartwallet/trend-forecaster/internal/telemetry"
)

type HealthHandler struct {
	redis *database.RedisClient
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Redis     string    `json:"redis"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHealthHandler(redis *database.RedisClient) *HealthHandler {
	return &HealthHandler{redis: redis}
}

// HealthCheck reports service availability and the state of the Redis
// connection. The service itself is "ok" even when Redis is down; forecast
// requests then fall through to on-demand computation.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	redisStatus := "connected"
	if h.redis == nil {
		redisStatus = "disconnected"
	} else if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
		redisStatus = "disconnected"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   telemetry.ServiceName,
		Version:   telemetry.ServiceVersion,
		Redis:     redisStatus,
		Timestamp: time.Now(),
	})
}
