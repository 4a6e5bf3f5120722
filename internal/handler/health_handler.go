package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	response := map[string]interface{}{
		"status":   "healthy",
		"service":  h.serviceName,
		"time":     h.now().Format(time.RFC3339),
		"sessions": h.sessions.Len(),
	}

	// Check database connection if requested
	if c.QueryParam("check") == "db" && h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			logger.FromContext(c).Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		response["db_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}

// MetricsHandler exposes the Prometheus metrics
func MetricsHandler(c echo.Context) error {
	prometheus.GetPrometheusHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
