// Package contractors provides the contractor store bounded context.
// Rows are written by the registry sync and read by operators, outreach and
// tracking.
package contractors

import (
	"govcon_outreach_backend/internal/contractors/handler"
	"govcon_outreach_backend/internal/contractors/repository"
	"govcon_outreach_backend/internal/contractors/service"
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contractors bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the contractors module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contractors"
}

// Service returns the contractor read service.
func (m *Module) Service() *service.Service {
	return m.service
}

// SyncStrategy builds the sync strategy that feeds this store.
func (m *Module) SyncStrategy(source service.EntitySource, markets service.MarketSource, workers int, log *logger.Logger) *service.SyncStrategy {
	return service.NewSyncStrategy(source, markets, m.repo, workers, log)
}

// RegisterRoutes mounts the operator read endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/contractors")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
