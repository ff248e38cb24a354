package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"govcon_outreach_backend/internal/contractors/service"
	"govcon_outreach_backend/internal/contractors/transport"
	"govcon_outreach_backend/platform/httpkit"
	"govcon_outreach_backend/platform/validator"
)

// Handler handles operator contractor reads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new contractors handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List returns contractors ordered by score.
// GET /api/v1/contractors
func (h *Handler) List(c *gin.Context) {
	var req transport.ListContractorsRequest
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

// Get returns one contractor.
// GET /api/v1/contractors/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contractor id", nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
