package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/httperr"
	"github.com/garagehub/gomicro/jwtutil"
	"github.com/garagehub/gomicro/logger"
	"github.com/garagehub/gomicro/metrics"
	"github.com/garagehub/gomicro/model"
	"github.com/garagehub/gomicro/revocation"
	"github.com/garagehub/gomicro/tenant"
)

// AuthHandler owns the authentication endpoints of the users service.
type AuthHandler struct {
	issuer *jwtutil.Issuer
	store  *revocation.Store
}

// NewAuthHandler creates the handler.
func NewAuthHandler(issuer *jwtutil.Issuer, store *revocation.Store) *AuthHandler {
	return &AuthHandler{issuer: issuer, store: store}
}

// Register creates a tenant and its first owner user in one transaction. A
// tenant never exists without a principal and a principal always references
// a tenant.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	metrics.RegisterCounter.Inc()

	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		TenantName string `json:"tenant_name"`
		Plan       string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeInvalidRequest, "invalid request")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeValidation, "name, email and password are required")
	}
	if req.TenantName == "" {
		req.TenantName = "New Workshop"
	}
	if req.Plan == "" {
		req.Plan = model.PlanBasic
	}

	db := database.FromContext(c.Request().Context())

	var existing model.User
	switch err := db.Where("email = ?", req.Email).First(&existing).Error; {
	case err == nil:
		return httperr.JSON(c, http.StatusConflict, httperr.CodeConflict, "email already registered")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Error("failed to check for existing email", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "lookup failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "registration failed")
	}

	var user model.User
	err = db.Transaction(func(tx *gorm.DB) error {
		t := model.Tenant{Name: req.TenantName, Plan: req.Plan}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		// Bind the scope to the fresh tenant so the user insert passes the
		// row-level-security check in the same transaction.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SET LOCAL "+database.ScopeSetting+" = ?", t.ID).Error; err != nil {
				return err
			}
		}
		user = model.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: string(hash),
			TenantID:     t.ID,
			Role:         model.RoleOwner,
			Plan:         req.Plan,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		log.Error("failed to create tenant and owner", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "registration failed")
	}

	log.Info("tenant registered",
		zap.Uint("tenant_id", user.TenantID),
		zap.Uint("user_id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"tenant_id": user.TenantID,
		"role":      user.Role,
	})
}

// Login verifies credentials and returns an access and refresh token pair.
// Both tokens snapshot the user's tenant id and plan at mint time.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	metrics.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeInvalidRequest, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return httperr.JSON(c, http.StatusBadRequest, httperr.CodeValidation, "email and password are required")
	}

	db := database.FromContext(c.Request().Context())

	var user model.User
	if err := db.Preload("Tenant").Where("email = ?", req.Email).First(&user).Error; err != nil {
		metrics.RecordAuthError("user_not_found")
		return httperr.Unauthorized(c, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("invalid password", zap.String("email", req.Email))
		metrics.RecordAuthError("invalid_password")
		return httperr.Unauthorized(c, "invalid credentials")
	}

	plan := user.EffectivePlan()
	tenantID := int(user.TenantID)
	tenantName := user.Tenant.Name

	accessToken, err := h.issuer.AccessToken(user.ID, tenantID, plan, tenantName)
	if err != nil {
		log.Error("failed to mint access token", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "token error")
	}
	refreshToken, err := h.issuer.RefreshToken(user.ID, tenantID, plan, tenantName)
	if err != nil {
		log.Error("failed to mint refresh token", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "token error")
	}

	log.Info("user logged in",
		zap.Uint("user_id", user.ID),
		zap.Int("tenant_id", tenantID),
		zap.String("plan", plan))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": echo.Map{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"tenant_id":   user.TenantID,
			"tenant_name": tenantName,
			"plan":        plan,
			"role":        user.Role,
		},
	})
}

// Refresh mints a new access token from a valid refresh token. The new token
// carries the same tenant id and plan the refresh token holds; routes that
// need fresh tenant data must log in again.
func (h *AuthHandler) Refresh(c echo.Context) error {
	id := tenant.IdentityFromContext(c.Request().Context())
	if id == nil {
		return httperr.Unauthorized(c, "missing refresh token")
	}

	accessToken, err := h.issuer.AccessToken(id.UserID, id.TenantID, id.Plan, id.TenantName)
	if err != nil {
		logger.FromEcho(c).Error("failed to mint access token", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "token error")
	}

	return c.JSON(http.StatusOK, echo.Map{"access_token": accessToken})
}

// Logout revokes the presented token. The revocation record is the only
// thing that makes the token unusable before expiry, so a failed write is a
// failed logout, never a silent success.
func (h *AuthHandler) Logout(c echo.Context) error {
	log := logger.FromEcho(c)

	id := tenant.IdentityFromContext(c.Request().Context())
	if id == nil {
		return httperr.Unauthorized(c, "missing authorization token")
	}

	if err := h.store.Revoke(c.Request().Context(), id.JTI, id.UserID, id.TokenKind, "logout"); err != nil {
		log.Error("failed to persist revocation", zap.Error(err), zap.String("jti", id.JTI))
		return httperr.JSON(c, http.StatusServiceUnavailable, httperr.CodeUnavailable, "logout could not be persisted")
	}
	metrics.RecordRevocation(id.TokenKind)

	log.Info("token revoked", zap.String("jti", id.JTI), zap.Uint("user_id", id.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// LogoutAll invalidates every outstanding session for the caller by stamping
// a revocation cutoff; tokens issued before it fail verification from now
// on.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	log := logger.FromEcho(c)

	id := tenant.IdentityFromContext(c.Request().Context())
	if id == nil {
		return httperr.Unauthorized(c, "missing authorization token")
	}

	count, err := h.store.RevokeAllForUser(c.Request().Context(), id.UserID, "logout_all")
	if err != nil {
		log.Error("failed to persist bulk revocation", zap.Error(err), zap.Uint("user_id", id.UserID))
		return httperr.JSON(c, http.StatusServiceUnavailable, httperr.CodeUnavailable, "logout could not be persisted")
	}
	metrics.RecordRevocation("bulk")

	log.Info("all sessions revoked", zap.Uint("user_id", id.UserID))
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "all sessions logged out",
		"revoked_marks": count,
	})
}

// Me returns the authenticated user's profile and tenant.
func (h *AuthHandler) Me(c echo.Context) error {
	id := tenant.IdentityFromContext(c.Request().Context())
	if id == nil {
		return httperr.Unauthorized(c, "missing authorization token")
	}

	db := database.FromContext(c.Request().Context())

	var user model.User
	if err := db.Preload("Tenant").First(&user, id.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.JSON(c, http.StatusNotFound, httperr.CodeNotFound, "user not found")
		}
		logger.FromEcho(c).Error("failed to load user", zap.Error(err))
		return httperr.JSON(c, http.StatusInternalServerError, httperr.CodeInternalFailure, "lookup failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"tenant_id":   user.TenantID,
		"tenant_name": user.Tenant.Name,
		"plan":        user.EffectivePlan(),
		"role":        user.Role,
	})
}
