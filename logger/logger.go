package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/garagehub/gomicro/tenant"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var log *zap.Logger

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds the process logger. Production gets JSON with ISO8601
// timestamps; everything else gets the colored console encoder.
func InitLogger(config *LogConfig) error {
	var zapCfg zap.Config
	if config.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(config.Level))

	built, err := zapCfg.Build(zap.Fields(
		zap.String("service", config.ServiceName),
		zap.String("environment", config.Environment),
	))
	if err != nil {
		return err
	}

	log = built
	zap.ReplaceGlobals(log)
	return nil
}

// GetLogger returns the global logger, or a nop logger before InitLogger has
// run (tests mostly).
func GetLogger() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Middleware returns an echo middleware that emits one access-log line per
// request. The line carries the request id and, when a token bound one, the
// tenant id, so tenant activity can be traced across services.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = c.Response().Header().Get("X-Request-ID")
			}

			reqLogger := GetLogger().With(zap.String("request_id", requestID))
			c.Set("logger", reqLogger)

			err := next(c)

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if tenantID, ok := tenant.TenantID(c.Request().Context()); ok {
				fields = append(fields, zap.Int("tenant_id", tenantID))
			}
			reqLogger.Info("HTTP Request", fields...)

			return err
		}
	}
}
