package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/httperr"
	"github.com/garagehub/gomicro/logger"
	"github.com/garagehub/gomicro/model"
	"github.com/garagehub/gomicro/tenant"
)

// UserHandler serves tenant-scoped user listings.
type UserHandler struct{}

// NewUserHandler creates the handler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// List returns the users of the caller's tenant. The query is filtered on
// the bound tenant id here and again by the row-level-security policy; a
// request with no tenant context gets 403, never an unscoped listing.
func (h *UserHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := tenant.TenantID(ctx)
	if !ok {
		return httperr.Forbidden(c, httperr.CodeTenantMissing, "tenant context required")
	}

	db := database.FromContext(ctx)

	var users []model.User
	if err := db.Where("tenant_id = ?", tenantID).Order("id").Find(&users).Error; err != nil {
		logger.FromEcho(c).Error("failed to list users", zap.Error(err), zap.Int("tenant_id", tenantID))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "lookup failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users, "tenant_id": tenantID})
}
