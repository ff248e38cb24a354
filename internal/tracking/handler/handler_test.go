package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureQueue struct {
	mu       sync.Mutex
	payloads []ingest.SignalPayload
	err      error
}

func (q *captureQueue) Enqueue(ctx context.Context, payload ingest.SignalPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

func newRouter(queue ingest.SignalQueue) (*gin.Engine, *tracklink.Signer) {
	signer := tracklink.NewSigner("secret", "https://api.example.com")
	h := New(signer, queue, "https://app.example.com/", validator.New(), logger.New("development"))
	r := gin.New()
	r.GET(tracklink.OpenPath, h.Open)
	r.GET(tracklink.ClickPath, h.Click)
	r.GET(tracklink.UnsubscribePath, h.Unsubscribe)
	r.POST("/api/v1/track/signup", h.Signup)
	return r, signer
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, strings.TrimPrefix(target, "https://api.example.com"), strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClickRedirectsAndQueues(t *testing.T) {
	queue := &captureQueue{}
	r, signer := newRouter(queue)
	msgID, contractorID := uuid.New(), uuid.New()

	w := do(r, http.MethodGet, signer.ClickURL(msgID, contractorID, "https://sam.example/opp/1?x=1"), "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://sam.example/opp/1?x=1" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Location"))
	}
	if len(queue.payloads) != 1 {
		t.Fatalf("expected one queued signal, got %d", len(queue.payloads))
	}
	p := queue.payloads[0]
	if p.Kind != "click" || *p.ContractorID != contractorID || *p.EmailLogID != msgID || p.OccurredAt.IsZero() {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestClickWithBadSignatureRecordsNothing(t *testing.T) {
	queue := &captureQueue{}
	r, signer := newRouter(queue)
	good := signer.ClickURL(uuid.New(), uuid.New(), "https://sam.example/opp/1")

	cases := map[string]string{
		"tampered url":  strings.Replace(good, "opp%2F1", "opp%2F2", 1),
		"missing sig":   good[:strings.Index(good, "&sig=")],
		"javascript":    "/api/v1/track/click?url=javascript:alert(1)",
		"no parameters": "/api/v1/track/click",
	}
	for name, target := range cases {
		w := do(r, http.MethodGet, target, "")
		if w.Code != http.StatusFound || w.Header().Get("Location") != "https://app.example.com" {
			t.Errorf("%s: unexpected response %d %q", name, w.Code, w.Header().Get("Location"))
		}
	}
	if len(queue.payloads) != 0 {
		t.Fatalf("expected nothing queued, got %+v", queue.payloads)
	}
}

func TestOpenAlwaysReturnsPixel(t *testing.T) {
	queue := &captureQueue{}
	r, signer := newRouter(queue)

	w := do(r, http.MethodGet, signer.OpenURL(uuid.New(), uuid.New()), "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/gif" || w.Body.Len() != len(transparentGIF) {
		t.Fatalf("unexpected pixel response %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = do(r, http.MethodGet, "/api/v1/track/open?message_id=x", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unsigned pixel should still render, got %d", w.Code)
	}
	if len(queue.payloads) != 1 || queue.payloads[0].Kind != "open" {
		t.Fatalf("unexpected payloads %+v", queue.payloads)
	}
}

func TestUnsubscribeIsIdempotentPage(t *testing.T) {
	queue := &captureQueue{}
	r, signer := newRouter(queue)
	link := signer.UnsubscribeURL(uuid.New(), uuid.New())

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodGet, link, "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "You have been unsubscribed") {
			t.Fatalf("visit %d: unexpected response %d", i, w.Code)
		}
	}
	if len(queue.payloads) != 2 || queue.payloads[0].Kind != "unsubscribe" {
		t.Fatalf("unexpected payloads %+v", queue.payloads)
	}

	w := do(r, http.MethodGet, "/api/v1/track/unsubscribe?contractor_id="+uuid.NewString(), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned link, got %d", w.Code)
	}
}

func TestSignup(t *testing.T) {
	queue := &captureQueue{}
	r, _ := newRouter(queue)

	w := do(r, http.MethodPost, "/api/v1/track/signup", `{"email":" Owner@Acme.Example ","promoCode":"gc-abcd2345"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	p := queue.payloads[0]
	if p.Kind != "signup" || p.Email != "owner@acme.example" || p.PromoCode != "GC-ABCD2345" || p.ContractorID != nil {
		t.Fatalf("unexpected payload %+v", p)
	}

	w = do(r, http.MethodPost, "/api/v1/track/signup", `{"promoCode":"GC-ABCD2345"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without contractor or email, got %d", w.Code)
	}
}

func TestSignupAcceptedWhenQueueUnavailable(t *testing.T) {
	r, _ := newRouter(&captureQueue{err: ingest.ErrQueueFull})

	w := do(r, http.MethodPost, "/api/v1/track/signup", `{"contractorId":"`+uuid.NewString()+`"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 even when the queue rejects the signal, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"accepted":true`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
