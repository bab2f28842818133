package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagehub/gomicro/metrics"
)

// HealthCheck handles the health check endpoint
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "users-service",
	})
}

// Metrics exposes the Prometheus metrics endpoint
func Metrics(c echo.Context) error {
	metrics.GetPrometheusHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
