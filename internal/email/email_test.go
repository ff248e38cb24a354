package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestBrevo(t *testing.T, handler http.HandlerFunc) *BrevoSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sender := NewBrevoSender("test-key", "GovCon Leads", "hello@example.com")
	sender.endpoint = srv.URL
	return sender
}

func TestBrevoSendReturnsMessageID(t *testing.T) {
	var got brevoEmailRequest
	sender := newTestBrevo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<202603011200.123@smtp-relay.mailin.fr>"}`))
	})

	id, err := sender.Send(context.Background(), Message{
		To:      "bd@acme.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
		Tags:    []string{"intro"},
		Headers: map[string]string{"List-Unsubscribe": "<https://api.example.com/u>"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "<202603011200.123@smtp-relay.mailin.fr>" {
		t.Fatalf("unexpected message id %q", id)
	}
	if got.To[0].Email != "bd@acme.com" || got.TextContent != "Hi" || got.Tags[0] != "intro" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Headers["List-Unsubscribe"] == "" {
		t.Fatal("expected custom headers to be forwarded")
	}
}

func TestBrevoClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		rejected bool
	}{
		{"bad recipient", http.StatusBadRequest, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newTestBrevo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":"failure"}`))
			})
			_, err := sender.Send(context.Background(), Message{To: "bd@acme.com", Subject: "x", HTML: "x"})
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, ErrRejected) != tt.rejected {
				t.Fatalf("rejected=%v for status %d: %v", errors.Is(err, ErrRejected), tt.status, err)
			}
		})
	}
}

func TestSMTPBuildSetsMessageIDAndHeaders(t *testing.T) {
	sender := NewSMTPSender("localhost", 25, "", "", "hello@example.com", "GovCon Leads")
	m, err := sender.build(Message{
		To:      "bd@acme.com",
		ToName:  "Jane Doe",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
		Headers: map[string]string{"List-Unsubscribe": "<https://api.example.com/u>"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.GetMessageID() == "" {
		t.Fatal("expected a generated message id")
	}
}

func TestSMTPBuildRejectsBadRecipient(t *testing.T) {
	sender := NewSMTPSender("localhost", 25, "", "", "hello@example.com", "GovCon Leads")
	if _, err := sender.build(Message{To: "not an address", Subject: "x", HTML: "x"}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRenderLayoutKeepsBodyHTML(t *testing.T) {
	out, err := RenderLayout(LayoutData{Subject: "Hi & welcome", Body: "<p>Body <a href=\"https://x\">x</a></p>", Footer: "<a href=\"https://u\">Unsubscribe</a>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `<p>Body <a href="https://x">x</a></p>`) {
		t.Fatalf("body was escaped: %s", out)
	}
	if !strings.Contains(out, "Hi &amp; welcome") {
		t.Fatal("subject should be escaped in the title")
	}
}
