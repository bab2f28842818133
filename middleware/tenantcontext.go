package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/jwtutil"
	"github.com/garagehub/gomicro/logger"
	"github.com/garagehub/gomicro/tenant"
)

// TenantContext is the optional-mode binder that runs on every request
// before the business handlers. No token, or an invalid one, lets the
// request proceed unbound; routes that require authentication enforce that
// with Auth. What it never does is bind a tenant from a token that failed
// verification.
//
// When a tenant is bound it is also pushed into the database session scope
// so row-level security sees the same tenant for the rest of the request.
func TenantContext(verifier *jwtutil.Verifier, scope *database.TenantScope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokenString := bearerToken(c)
			if tokenString == "" {
				return next(c)
			}

			claims, err := verifier.Verify(c.Request().Context(), tokenString, "")
			if err != nil {
				// Optional mode: rejection is the route's responsibility.
				log.Debug("ignoring invalid token in optional context", zap.Error(err))
				return next(c)
			}

			id, err := tenant.FromClaims(claims)
			if err != nil {
				log.Debug("ignoring token with malformed subject", zap.Error(err))
				return next(c)
			}

			bindIdentity(c, id)

			if scope != nil && id.TenantID != 0 {
				if err := scope.Bind(c.Request().Context(), id.TenantID); err != nil {
					log.Error("failed to bind tenant scope", zap.Error(err),
						zap.Int("tenant_id", id.TenantID))
					return echo.NewHTTPError(503, "database unavailable")
				}
			}

			return next(c)
		}
	}
}
