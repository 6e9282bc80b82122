package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// HealthCheck godoc
// @Summary Health check
// @Description Reports service and dependency health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "mongodb": "ok", "redis": "ok"}
	healthy := true

	if err := config.MongoDB.Client().Ping(ctx, readpref.Primary()); err != nil {
		status["mongodb"] = "unavailable"
		healthy = false
	}
	if err := config.Redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}

	if !healthy {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
