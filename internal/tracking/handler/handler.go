package handler

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"govcon_outreach_backend/internal/pipeline/domain"
	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/internal/tracking/transport"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/httpkit"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
	"govcon_outreach_backend/platform/validator"
)

//go:embed templates/*.html
var pages embed.FS

// transparentGIF is a 1x1 transparent GIF89a.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

const enqueueTimeout = 2 * time.Second

type pageData struct {
	Title   string
	Message string
	HomeURL string
}

// Handler serves the public tracking endpoints.
type Handler struct {
	signer     *tracklink.Signer
	queue      ingest.SignalQueue
	appBaseURL string
	val        *validator.Validator
	log        *logger.Logger
	page       *template.Template
	now        func() time.Time
}

// New creates a tracking handler.
func New(signer *tracklink.Signer, queue ingest.SignalQueue, appBaseURL string, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		signer:     signer,
		queue:      queue,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		val:        val,
		log:        log,
		page:       template.Must(template.ParseFS(pages, "templates/unsubscribe.html")),
		now:        time.Now,
	}
}

// Open serves the tracking pixel. The pixel is returned whether or not the
// link verifies.
// GET /api/v1/track/open
func (h *Handler) Open(c *gin.Context) {
	if messageID, contractorID, ok := h.verified(c, ""); ok {
		h.enqueue(c, ingest.SignalPayload{
			Kind:         string(domain.SignalOpen),
			ContractorID: &contractorID,
			EmailLogID:   &messageID,
		})
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", transparentGIF)
}

// Click records the click and redirects to the wrapped target. A bad
// signature or a non-http target redirects to the app and records nothing.
// GET /api/v1/track/click
func (h *Handler) Click(c *gin.Context) {
	target := c.Query(tracklink.ParamURL)
	if !isHTTPURL(target) {
		metrics.EngagementSignalsTotal.WithLabelValues(string(domain.SignalClick), "rejected").Inc()
		c.Redirect(http.StatusFound, h.home())
		return
	}
	messageID, contractorID, ok := h.verified(c, target)
	if !ok {
		c.Redirect(http.StatusFound, h.home())
		return
	}

	h.enqueue(c, ingest.SignalPayload{
		Kind:         string(domain.SignalClick),
		ContractorID: &contractorID,
		EmailLogID:   &messageID,
		Metadata:     map[string]any{"url": target},
	})
	c.Redirect(http.StatusFound, target)
}

// Signup records a signup from the web app. Resolution by email happens
// asynchronously, so an unknown email is still accepted. A queue failure is
// logged and counted but never reported to the caller.
// POST /api/v1/track/signup
func (h *Handler) Signup(c *gin.Context) {
	var req transport.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	h.enqueue(c, ingest.SignalPayload{
		Kind:         string(domain.SignalSignup),
		ContractorID: req.ContractorID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PromoCode:    strings.ToUpper(strings.TrimSpace(req.PromoCode)),
	})
	httpkit.JSON(c, http.StatusAccepted, transport.SignupResponse{Accepted: true})
}

// Unsubscribe confirms the opt-out. Repeated visits show the same page.
// GET /api/v1/track/unsubscribe
func (h *Handler) Unsubscribe(c *gin.Context) {
	messageID, contractorID, ok := h.verified(c, "")
	if !ok {
		h.render(c, http.StatusBadRequest, pageData{
			Title:   "Link not recognised",
			Message: "This unsubscribe link is incomplete or has expired. Reply to any of our emails and we will remove you by hand.",
			HomeURL: h.appBaseURL,
		})
		return
	}

	h.enqueue(c, ingest.SignalPayload{
		Kind:         string(domain.SignalUnsubscribe),
		ContractorID: &contractorID,
		EmailLogID:   &messageID,
	})
	h.render(c, http.StatusOK, pageData{
		Title:   "You have been unsubscribed",
		Message: "You will not receive further outreach emails from us.",
		HomeURL: h.appBaseURL,
	})
}

func (h *Handler) verified(c *gin.Context, target string) (uuid.UUID, uuid.UUID, bool) {
	messageID, err := uuid.Parse(c.Query(tracklink.ParamMessageID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	contractorID, err := uuid.Parse(c.Query(tracklink.ParamContractorID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	if !h.signer.Verify(messageID, contractorID, target, c.Query(tracklink.ParamSignature)) {
		h.log.Debug("tracking signature rejected", "path", c.FullPath(), "contractorId", contractorID)
		return uuid.Nil, uuid.Nil, false
	}
	return messageID, contractorID, true
}

// enqueue detaches the signal from the request lifetime.
func (h *Handler) enqueue(c *gin.Context, payload ingest.SignalPayload) {
	payload.OccurredAt = h.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), enqueueTimeout)
	defer cancel()

	if err := h.queue.Enqueue(ctx, payload); err != nil {
		metrics.EngagementSignalsTotal.WithLabelValues(payload.Kind, "enqueue_failed").Inc()
		h.log.Error("engagement signal not queued", "signal", payload.Kind, "contractorId", payload.ContractorID, "email", payload.Email, "error", err)
	}
}

func (h *Handler) render(c *gin.Context, status int, data pageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := h.page.Execute(c.Writer, data); err != nil {
		h.log.Error("render tracking page", "error", err)
	}
}

func (h *Handler) home() string {
	if h.appBaseURL == "" {
		return "/"
	}
	return h.appBaseURL
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
