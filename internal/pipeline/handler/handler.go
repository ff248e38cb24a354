package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"govcon_outreach_backend/internal/pipeline/service"
	"govcon_outreach_backend/platform/httpkit"
)

// Handler exposes pipeline sweeps to operators.
type Handler struct {
	svc *service.Service
}

// New creates a new pipeline handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ExpireTrials churns converted contractors whose trial has ended.
// POST /api/v1/sweeps/trials
func (h *Handler) ExpireTrials(c *gin.Context) {
	summary, err := h.svc.ExpireTrials(c.Request.Context(), time.Now().UTC())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}
