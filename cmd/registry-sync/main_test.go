package main

import (
	"testing"
	"time"

	"govcon_outreach_backend/internal/syncjob"
)

func TestRequestDefaultsToToToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	req, err := options{Kind: "opportunities", From: "2026-03-01", Codes: []string{" 236220", "236220", ""}}.request(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != syncjob.KindOpportunities {
		t.Fatalf("unexpected kind %q", req.Kind)
	}
	if req.To == nil || !req.To.Equal(now) {
		t.Fatalf("expected to=now, got %v", req.To)
	}
	if len(req.Codes) != 1 || req.Codes[0] != "236220" {
		t.Fatalf("unexpected codes %v", req.Codes)
	}
}

func TestRequestRejectsBadInput(t *testing.T) {
	now := time.Now().UTC()
	cases := []options{
		{Kind: "vendors"},
		{Kind: "contractors", From: "03/01/2026"},
		{Kind: "contractors", From: "2026-03-10", To: "2026-03-01"},
		{Kind: "contractors", Max: -1},
	}
	for _, opts := range cases {
		if _, err := opts.request(now); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
