package syncjob

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"govcon_outreach_backend/platform/httpkit"
	"govcon_outreach_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidDate      = "dates must use YYYY-MM-DD"
)

// ContractorSyncRequest is the body of POST /sync/contractors.
type ContractorSyncRequest struct {
	From  string   `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string   `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Max   int      `json:"max" validate:"min=0,max=50000"`
	Codes []string `json:"codes" validate:"omitempty,max=50,dive,naics"`
}

// OpportunitySyncRequest is the body of POST /sync/opportunities.
type OpportunitySyncRequest struct {
	ClassificationFilter []string `json:"classificationFilter" validate:"omitempty,max=50,dive,naics"`
	From                 string   `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To                   string   `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Max                  int      `json:"max" validate:"min=0,max=50000"`
}

// RunHistoryRequest holds the GET /sync/runs query.
type RunHistoryRequest struct {
	Kind  string `form:"kind" validate:"omitempty,oneof=contractors opportunities"`
	Limit int    `form:"limit" validate:"min=0,max=100"`
}

// Handler exposes sync runs to operators.
type Handler struct {
	runners map[Kind]*Runner
	store   RunStore
	val     *validator.Validator
}

// NewHandler creates a sync handler over the given runners.
func NewHandler(store RunStore, val *validator.Validator, runners ...*Runner) *Handler {
	byKind := make(map[Kind]*Runner, len(runners))
	for _, r := range runners {
		byKind[r.Kind()] = r
	}
	return &Handler{runners: byKind, store: store, val: val}
}

// SyncContractors runs a contractor sync and returns its summary.
// POST /api/v1/sync/contractors
func (h *Handler) SyncContractors(c *gin.Context) {
	var req ContractorSyncRequest
	if !h.bind(c, &req) {
		return
	}
	from, to, ok := parseWindow(c, req.From, req.To)
	if !ok {
		return
	}
	h.run(c, Request{Kind: KindContractors, From: from, To: to, Codes: normalizeCodes(req.Codes), MaxRecords: req.Max})
}

// SyncOpportunities refreshes the opportunity cache and returns its summary.
// POST /api/v1/sync/opportunities
func (h *Handler) SyncOpportunities(c *gin.Context) {
	var req OpportunitySyncRequest
	if !h.bind(c, &req) {
		return
	}
	from, to, ok := parseWindow(c, req.From, req.To)
	if !ok {
		return
	}
	h.run(c, Request{Kind: KindOpportunities, From: from, To: to, Codes: normalizeCodes(req.ClassificationFilter), MaxRecords: req.Max})
}

// History lists recent sync runs.
// GET /api/v1/sync/runs
func (h *Handler) History(c *gin.Context) {
	var req RunHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	runs, err := h.store.List(c.Request.Context(), Kind(req.Kind), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": runs})
}

func (h *Handler) run(c *gin.Context, req Request) {
	runner, ok := h.runners[req.Kind]
	if !ok {
		httpkit.Error(c, http.StatusNotFound, "sync kind not configured", nil)
		return
	}

	summary, err := runner.Run(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return false
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func parseWindow(c *gin.Context, fromRaw, toRaw string) (*time.Time, *time.Time, bool) {
	var from, to *time.Time
	if fromRaw != "" {
		t, err := time.Parse(time.DateOnly, fromRaw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidDate, nil)
			return nil, nil, false
		}
		from = &t
	}
	if toRaw != "" {
		t, err := time.Parse(time.DateOnly, toRaw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidDate, nil)
			return nil, nil, false
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		httpkit.Error(c, http.StatusBadRequest, "to must not be before from", nil)
		return nil, nil, false
	}
	if from != nil && to == nil {
		now := time.Now().UTC()
		to = &now
	}
	return from, to, true
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
