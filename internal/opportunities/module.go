// Package opportunities provides the opportunity cache bounded context.
// Notices are refreshed from the registry by the sync runner and served to
// callers from PostgreSQL only.
package opportunities

import (
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/internal/opportunities/handler"
	"govcon_outreach_backend/internal/opportunities/repository"
	"govcon_outreach_backend/internal/opportunities/service"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the opportunities bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the opportunities module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cache service.ListCache, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cache, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "opportunities"
}

// Service returns the read service for scoring and targeting.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for the refresh strategy.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RefreshStrategy builds the sync strategy that refreshes this cache.
func (m *Module) RefreshStrategy(source service.OpportunitySource, workers int, log *logger.Logger) *service.RefreshStrategy {
	return service.NewRefreshStrategy(source, m.repo, m.service, workers, log)
}

// RegisterRoutes mounts the public, rate-limited read endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/opportunities", ctx.PublicRateLimit, m.handler.List)
	ctx.V1.GET("/opportunities/matching", ctx.PublicRateLimit, m.handler.Matching)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
