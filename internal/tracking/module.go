// Package tracking is the public engagement ingest: open pixels, click
// redirects, signups and unsubscribes. Handlers answer immediately and hand
// the pipeline update to a signal queue.
package tracking

import (
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/internal/tracking/handler"
	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"
)

// Module is the tracking bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the tracking module. queue is either the Redis task
// queue or an in-process ingest.LocalQueue.
func NewModule(signer *tracklink.Signer, queue ingest.SignalQueue, appBaseURL string, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: handler.New(signer, queue, appBaseURL, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tracking"
}

// RegisterRoutes mounts the public tracking endpoints. Only signup is rate
// limited; pixels and redirects from shared mail proxies would trip it.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/track")
	group.GET("/open", m.handler.Open)
	group.GET("/click", m.handler.Click)
	group.GET("/unsubscribe", m.handler.Unsubscribe)
	group.POST("/signup", ctx.PublicRateLimit, m.handler.Signup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
