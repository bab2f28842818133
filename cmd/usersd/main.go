package main

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/garagehub/gomicro/config"
	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/internal/handler"
	"github.com/garagehub/gomicro/jwtutil"
	"github.com/garagehub/gomicro/logger"
	"github.com/garagehub/gomicro/metrics"
	"github.com/garagehub/gomicro/middleware"
	"github.com/garagehub/gomicro/model"
	"github.com/garagehub/gomicro/revocation"
)

func main() {
	cfg, err := config.Load("users-service")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("starting users service", cfg.LogConfig()...)

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	if err := database.MigrateModels(db,
		&model.Tenant{},
		&model.User{},
		&model.RevokedToken{},
		&model.UserRevocation{},
	); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Database-side enforcement layer. The users table carries the isolation
	// policy for every non-owner role; the tenants registry stays guarded by
	// the application layer because tenant creation precedes any scope.
	if err := database.EnableRowLevelSecurity(db, "users", "tenant_id"); err != nil {
		log.Fatal("failed to install row level security", zap.Error(err))
	}

	cache := revocation.NewCache(&cfg.Redis)
	store := revocation.NewStore(db, cache)
	issuer := jwtutil.NewIssuer(&cfg.JWT)
	verifier := jwtutil.NewVerifier(&cfg.JWT, store)
	scope := database.NewTenantScope(db)
	if !scope.Supported() {
		log.Warn("row-level security unavailable on this backend; tenant isolation relies on the guard alone")
	}

	httpMetrics := metrics.NewHTTPMetrics(cfg.Metrics.Prefix)
	authHandler := handler.NewAuthHandler(issuer, store)
	userHandler := handler.NewUserHandler()
	tenantHandler := handler.NewTenantHandler()

	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())
	e.Use(scope.Middleware())
	e.Use(middleware.TenantContext(verifier, scope))

	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.Metrics)

	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh, middleware.RefreshAuth(verifier))
	auth.POST("/logout", authHandler.Logout, middleware.Auth(verifier))
	auth.POST("/logout_all", authHandler.LogoutAll, middleware.Auth(verifier))
	auth.GET("/me", authHandler.Me, middleware.Auth(verifier))

	users := e.Group("/users", middleware.Auth(verifier))
	users.GET("", userHandler.List)

	tenants := e.Group("/tenants", middleware.Auth(verifier))
	guarded := middleware.TenantGuard(verifier, scope, "tenant_id")
	tenants.GET("/:tenant_id", tenantHandler.Get, guarded)
	tenants.PUT("/:tenant_id", tenantHandler.Update, guarded)

	log.Info("listening", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
