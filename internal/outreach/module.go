// Package outreach provides the campaign dispatcher bounded context:
// audience selection, throttled delivery with tracked links and operator
// follow-up tasks.
package outreach

import (
	"govcon_outreach_backend/internal/email"
	"govcon_outreach_backend/internal/events"
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/internal/outreach/handler"
	"govcon_outreach_backend/internal/outreach/repository"
	"govcon_outreach_backend/internal/outreach/service"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration the outreach module reads.
type Config interface {
	config.OutreachConfig
	config.TrackingConfig
	config.TargetingConfig
}

// Module is the outreach bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the outreach module.
func NewModule(pool *pgxpool.Pool, sender email.Sender, signer *tracklink.Signer, bus events.Bus, cfg Config, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(service.Deps{
		Repo:       repository.New(pool),
		Sender:     sender,
		Signer:     signer,
		Templates:  cfg.GetTargeting().Templates,
		Config:     cfg,
		AppBaseURL: cfg.GetAppBaseURL(),
		Bus:        bus,
		Log:        log,
	})
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "outreach"
}

// Service returns the dispatcher for the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the operator outreach endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/campaigns/send", m.handler.SendCampaign)
	ctx.Protected.POST("/sweeps/follow-ups", m.handler.SweepFollowUps)
	ctx.Protected.GET("/follow-ups", m.handler.ListFollowUps)
	ctx.Protected.POST("/follow-ups/:id/complete", m.handler.CompleteFollowUp)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
