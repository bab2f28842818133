// Package httperr defines the structured error body returned on rejected
// requests: a machine-readable code plus a human-readable message.
package httperr

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stable error codes shared across services.
const (
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeValidation      = "validation_error"
	CodeConflict        = "conflict"
	CodeNotFound        = "not_found"
	CodeUnavailable     = "service_unavailable"
	CodeTenantMissing   = "token_without_tenant"
	CodeTenantMismatch  = "tenant_mismatch"
	CodeTenantRequired  = "tenant_id_required"
	CodeInvalidRequest  = "invalid_request"
	CodeInternalFailure = "internal_error"
)

// Body is the JSON error envelope.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes the error envelope with the given status.
func JSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"error": Body{Code: code, Message: message}})
}

// Unauthorized writes a 401 authentication failure.
func Unauthorized(c echo.Context, message string) error {
	return JSON(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden writes a 403 authorization failure.
func Forbidden(c echo.Context, code, message string) error {
	return JSON(c, http.StatusForbidden, code, message)
}
