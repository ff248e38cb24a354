package syncjob

import (
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/platform/validator"
)

// Module exposes the sync runners over HTTP.
type Module struct {
	handler *Handler
}

// NewModule creates the sync module for the given runners.
func NewModule(store RunStore, val *validator.Validator, runners ...*Runner) *Module {
	return &Module{handler: NewHandler(store, val, runners...)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sync"
}

// RegisterRoutes mounts the operator sync endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/sync")
	group.POST("/contractors", m.handler.SyncContractors)
	group.POST("/opportunities", m.handler.SyncOpportunities)
	group.GET("/runs", m.handler.History)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
