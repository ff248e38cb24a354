package http

import (
	"context"

	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/ratelimit"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by the api binary and handed to the router.
type App struct {
	Config      RouterConfig
	Logger      *logger.Logger
	Health      HealthChecker
	RateLimiter ratelimit.Counter
	Modules     []Module
}
