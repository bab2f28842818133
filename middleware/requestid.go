package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID is the correlation header shared by every service.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns each request a correlation id, honoring one supplied by
// an upstream service. The logger middleware picks the id up from the
// response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
				c.Request().Header.Set(HeaderRequestID, requestID)
			}
			c.Response().Header().Set(HeaderRequestID, requestID)
			return next(c)
		}
	}
}
