package router

import (
	"grassroot-chatbot/backend/conversation/api"
	"grassroot-chatbot/backend/pkg/config"
	"grassroot-chatbot/backend/pkg/di"
	"grassroot-chatbot/backend/pkg/errors"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	// Use the container's logger
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Request IDs for correlating webhook deliveries across log lines
	engine.Use(middleware.RequestIDMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	// Create rate limiter tuned from configuration
	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	// the channel retries throttled deliveries forever; never limit the webhook
	limiterOpts.SkipPaths = []string{"/inbound"}
	rateLimiter := middleware.NewRateLimiter(container.Logger, limiterOpts)

	// Apply rate limiting to all routes
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	handler := api.NewWebhookHandler(
		r.Container.SafeNet,
		r.Container.Locker,
		r.Container.Console,
		r.Container.Metrics,
		r.Logger,
		r.Config.Server.Env,
	)
	admin := api.NewAdminHandler(r.Container.Turns)

	api.RegisterRoutes(r.Engine, handler, admin, r.Container.Console, r.Container.JWTService, r.Logger)

	r.setupHealthRoutes()
}
