package logger

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey struct{}

// echoKey is where the access-log middleware stashes the request logger on
// the echo context.
const echoKey = "logger"

// WithContext carries a logger down a call chain so helpers deep in the
// stack log with the caller's request fields.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger carried by ctx, or the process logger when
// none was attached. Never returns nil.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}

// FromEcho returns the request logger bound by the access-log middleware,
// with the request id already attached. Falls back to the process logger for
// routes outside the middleware chain.
func FromEcho(c echo.Context) *zap.Logger {
	if l, ok := c.Get(echoKey).(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}
