package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bankstream/auth-core/internal/api/handler"
	"github.com/bankstream/auth-core/internal/api/middleware"
	"github.com/bankstream/auth-core/internal/core/domain"
	"github.com/bankstream/auth-core/internal/core/ports"
	"github.com/bankstream/auth-core/internal/core/service"
	"github.com/bankstream/auth-core/internal/infrastructure/config"
	mongostore "github.com/bankstream/auth-core/internal/infrastructure/db/mongo"
	redisstore "github.com/bankstream/auth-core/internal/infrastructure/db/redis"
)

// NewRouter builds the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, notifier ports.Notifier, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("auth"))

	// --- Dependencies ---
	credentials := mongostore.NewCredentialRepository(db)
	audit := mongostore.NewAuditRepository(db)
	rotation := redisstore.NewRotationStore(rdb)
	tokenService := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, rotation, log)
	loginService := service.NewAuthService(credentials, tokenService, notifier, service.NewArgon2Hasher(), service.Config{
		BankName:         cfg.BankName,
		MaxLoginAttempts: cfg.Policy.MaxLoginAttempts,
		LockoutDuration:  cfg.Policy.LockoutDuration,
		OTPLength:        cfg.Policy.OTPLength,
		OTPTTL:           cfg.Policy.OTPTTL,
	}, log).WithAudit(audit)

	authHandler := handler.NewAuthHandler(loginService, tokenService, cfg.Cookie.Secure)
	profileHandler := handler.NewProfileHandler(credentials)
	adminHandler := handler.NewAdminHandler(loginService, audit)
	authMiddleware := middleware.Auth(cfg.JWT.Secret)

	// --- Auth routes ---
	auth := e.Group("/api/v1/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/otp/verify", authHandler.VerifyOTP)
	auth.POST("/token/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", profileHandler.Me, authMiddleware)

	// --- Admin routes (branch managers only) ---
	admin := e.Group("/api/v1/admin", authMiddleware, middleware.RequireRoles(domain.RoleBranchManager))
	admin.POST("/users/:id/unlock", adminHandler.Unlock)
	admin.GET("/users/:id/events", adminHandler.Events)

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	return e
}
