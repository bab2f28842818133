package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/httperr"
	"github.com/garagehub/gomicro/logger"
	"github.com/garagehub/gomicro/model"
	"github.com/garagehub/gomicro/tenant"
)

// TenantHandler serves the workshop settings routes. Both routes are keyed by
// a tenant id in the path and sit behind the tenant guard, so by the time a
// handler runs the path id has already been matched against the caller's
// token and the database scope is bound.
type TenantHandler struct{}

// NewTenantHandler creates the handler.
func NewTenantHandler() *TenantHandler {
	return &TenantHandler{}
}

type updateTenantRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
}

func validPlan(plan string) bool {
	switch plan {
	case model.PlanBasic, model.PlanPro, model.PlanEnterprise:
		return true
	}
	return false
}

// Get returns the caller's workshop settings.
func (h *TenantHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := tenant.TenantID(ctx)
	if !ok {
		return httperr.Forbidden(c, httperr.CodeTenantMissing, "tenant context required")
	}

	var t model.Tenant
	if err := database.FromContext(ctx).First(&t, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.JSON(c, http.StatusNotFound, httperr.CodeNotFound, "tenant not found")
		}
		logger.FromEcho(c).Error("failed to load tenant", zap.Error(err), zap.Int("tenant_id", tenantID))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "lookup failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"tenant": t})
}

// Update changes the workshop name and/or plan. Fields left empty in the
// request are kept as they are.
func (h *TenantHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := tenant.TenantID(ctx)
	if !ok {
		return httperr.Forbidden(c, httperr.CodeTenantMissing, "tenant context required")
	}

	var req updateTenantRequest
	if err := c.Bind(&req); err != nil {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeInvalidRequest, "invalid request body")
	}
	if req.Name == "" && req.Plan == "" {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeValidation, "nothing to update")
	}
	if req.Plan != "" && !validPlan(req.Plan) {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeValidation, "unknown plan")
	}

	db := database.FromContext(ctx)

	var t model.Tenant
	if err := db.First(&t, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.JSON(c, http.StatusNotFound, httperr.CodeNotFound, "tenant not found")
		}
		logger.FromEcho(c).Error("failed to load tenant", zap.Error(err), zap.Int("tenant_id", tenantID))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "lookup failed")
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Plan != "" {
		t.Plan = req.Plan
	}
	if err := db.Save(&t).Error; err != nil {
		logger.FromEcho(c).Error("failed to update tenant", zap.Error(err), zap.Int("tenant_id", tenantID))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "update failed")
	}

	logger.FromEcho(c).Info("tenant updated",
		zap.Int("tenant_id", tenantID),
		zap.String("plan", t.Plan))

	return c.JSON(http.StatusOK, echo.Map{"tenant": t})
}
