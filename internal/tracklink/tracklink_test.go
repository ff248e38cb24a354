package tracklink

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestClickURLRoundTrip(t *testing.T) {
	s := NewSigner("secret", "https://api.example.com/")
	msg, contractor := uuid.New(), uuid.New()
	target := "https://sam.gov/opp/abc?x=1&y=2"

	raw := s.ClickURL(msg, contractor, target)
	if !strings.HasPrefix(raw, "https://api.example.com"+ClickPath+"?") {
		t.Fatalf("unexpected click url %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get(ParamURL) != target {
		t.Fatalf("target not preserved: %q", q.Get(ParamURL))
	}
	if !s.Verify(msg, contractor, q.Get(ParamURL), q.Get(ParamSignature)) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := NewSigner("secret", "https://api.example.com")
	msg, contractor := uuid.New(), uuid.New()
	sig := s.Sign(msg, contractor, "https://good.example")

	cases := map[string]bool{
		"changed url":        s.Verify(msg, contractor, "https://evil.example", sig),
		"changed contractor": s.Verify(msg, uuid.New(), "https://good.example", sig),
		"other secret":       NewSigner("other", "https://api.example.com").Verify(msg, contractor, "https://good.example", sig),
		"garbage signature":  s.Verify(msg, contractor, "https://good.example", "zz"),
		"empty signature":    s.Verify(msg, contractor, "https://good.example", ""),
	}
	for name, ok := range cases {
		if ok {
			t.Errorf("%s: expected verification to fail", name)
		}
	}
}

func TestIsTrackable(t *testing.T) {
	s := NewSigner("secret", "https://api.example.com")
	tests := map[string]bool{
		"https://sam.gov/opp/1":                     true,
		"http://example.com":                        true,
		"mailto:bd@acme.com":                        false,
		"#section":                                  false,
		"/relative/path":                            false,
		"javascript:alert(1)":                       false,
		"https://api.example.com/api/v1/track/open": false,
	}
	for raw, want := range tests {
		if got := s.IsTrackable(raw); got != want {
			t.Errorf("IsTrackable(%q) = %v, want %v", raw, got, want)
		}
	}
}
