package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"govcon_outreach_backend/internal/outreach/service"
	"govcon_outreach_backend/internal/outreach/transport"
	"govcon_outreach_backend/platform/httpkit"
	"govcon_outreach_backend/platform/validator"
)

// Handler exposes campaign dispatch and follow-up tasks to operators.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new outreach handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SendCampaign sends one campaign batch and returns its summary. The request
// blocks until the batch finishes; a client disconnect stops it between
// recipients.
// POST /api/v1/campaigns/send
func (h *Handler) SendCampaign(c *gin.Context) {
	var req transport.SendCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	req.RequestedBy = httpkit.GetOperator(c).ID

	summary, err := h.svc.SendCampaign(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// SweepFollowUps marks pending follow-ups past their due date as overdue.
// POST /api/v1/sweeps/follow-ups
func (h *Handler) SweepFollowUps(c *gin.Context) {
	result, err := h.svc.MarkOverdue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CompleteFollowUp closes a follow-up task.
// POST /api/v1/follow-ups/:id/complete
func (h *Handler) CompleteFollowUp(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid follow-up id", nil)
		return
	}

	result, err := h.svc.CompleteFollowUp(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListFollowUps returns open follow-up tasks, earliest due first.
// GET /api/v1/follow-ups
func (h *Handler) ListFollowUps(c *gin.Context) {
	var req transport.ListFollowUpsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	items, err := h.svc.ListFollowUps(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}
