package database

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/garagehub/gomicro/logger"
)

// ScopeSetting is the transaction-local GUC the row-level-security policies
// read. When it is unset the policies compare against -1, which matches no
// tenant, so an unbound session sees zero rows.
const ScopeSetting = "app.current_tenant"

type txKey struct{}

// TenantScope runs each request inside a database transaction and pushes the
// bound tenant id into that transaction so row-level security sees the same
// tenant the application layer does. SET LOCAL keeps the value from leaking
// to the next pooled connection use.
type TenantScope struct {
	db *gorm.DB
}

// NewTenantScope creates a scope over the given handle.
func NewTenantScope(db *gorm.DB) *TenantScope {
	return &TenantScope{db: db}
}

// Supported reports whether the underlying store can enforce row-level
// security. On other dialects the scope is a no-op and isolation rests on
// the tenant guard and explicit filtering alone (reduced-guarantee mode).
func (s *TenantScope) Supported() bool {
	return s.db != nil && s.db.Dialector.Name() == "postgres"
}

// Middleware wraps the request in a transaction stored in the request
// context. The transaction commits when the handler returns cleanly and
// rolls back on error, so a rejected guarded request leaves no mutation
// behind.
func (s *TenantScope) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.db == nil {
				return next(c)
			}

			tx := s.db.WithContext(c.Request().Context()).Begin()
			if tx.Error != nil {
				logger.FromEcho(c).Error("failed to begin request transaction", zap.Error(tx.Error))
				return echo.NewHTTPError(503, "database unavailable")
			}

			ctx := context.WithValue(c.Request().Context(), txKey{}, tx)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				tx.Rollback()
				return err
			}
			if commitErr := tx.Commit().Error; commitErr != nil {
				logger.FromEcho(c).Error("failed to commit request transaction", zap.Error(commitErr))
				return echo.NewHTTPError(503, "database unavailable")
			}
			return nil
		}
	}
}

// Bind sets the tenant scoping variable on the request transaction. Must run
// before any tenant-scoped query in the request. No-op outside PostgreSQL.
func (s *TenantScope) Bind(ctx context.Context, tenantID int) error {
	if !s.Supported() {
		return nil
	}
	tx := FromContext(ctx)
	return tx.Exec("SET LOCAL "+ScopeSetting+" = ?", tenantID).Error
}

// FromContext returns the request-scoped transaction, falling back to the
// service-wide handle for callers outside a scoped request.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	if DB != nil {
		return DB.WithContext(ctx)
	}
	return nil
}

// TxFromContext returns the request-scoped transaction when one is bound.
// Unlike FromContext it never falls back to the service-wide handle, so
// callers holding their own handle can keep it for unscoped contexts.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// WithTx stores a transaction in the context. Exported for tests and for
// callers that manage their own transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}
