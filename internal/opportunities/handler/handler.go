package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"govcon_outreach_backend/internal/opportunities/service"
	"govcon_outreach_backend/internal/opportunities/transport"
	"govcon_outreach_backend/platform/httpkit"
	"govcon_outreach_backend/platform/validator"
)

// Handler handles HTTP requests for cached opportunities.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new opportunities handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List returns a page of cached opportunities. It never calls the registry.
// GET /api/v1/opportunities
func (h *Handler) List(c *gin.Context) {
	var req transport.ListOpportunitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Matching returns active notices whose code or sector matches code.
// GET /api/v1/opportunities/matching
func (h *Handler) Matching(c *gin.Context) {
	var req transport.MatchingOpportunitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.svc.Matching(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
