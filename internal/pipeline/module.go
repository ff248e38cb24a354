// Package pipeline provides the contractor pipeline state machine module.
// Engagement signals and the trial-expiry sweep move contractors between
// stages; every transition is recorded as an activity.
package pipeline

import (
	"govcon_outreach_backend/internal/events"
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/internal/pipeline/handler"
	"govcon_outreach_backend/internal/pipeline/repository"
	"govcon_outreach_backend/internal/pipeline/service"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the pipeline module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, cfg config.OutreachConfig, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), bus, cfg, log)
	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Service returns the service layer for the tracking ingest and scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the operator sweep endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/sweeps/trials", m.handler.ExpireTrials)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
