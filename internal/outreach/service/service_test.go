package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/email"
	"govcon_outreach_backend/internal/outreach/repository"
	"govcon_outreach_backend/internal/outreach/transport"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
)

type testOutreachConfig struct {
	interval time.Duration
}

func (c testOutreachConfig) GetOutreachMinSendInterval() time.Duration { return c.interval }
func (testOutreachConfig) GetOutreachCooldown() time.Duration          { return 7 * 24 * time.Hour }
func (testOutreachConfig) GetOutreachSendTimeout() time.Duration       { return time.Second }
func (testOutreachConfig) GetFollowUpDelay() time.Duration             { return 72 * time.Hour }
func (testOutreachConfig) GetTrialLength() time.Duration               { return 14 * 24 * time.Hour }
func (testOutreachConfig) GetCampaignBatchLimit() int                  { return 200 }

type fakeRepo struct {
	mu        sync.Mutex
	targets   []repository.Target
	selection repository.Selection
	sent      []repository.SentRecord
	failed    []repository.FailedRecord
	openTasks map[uuid.UUID]bool
}

func (r *fakeRepo) SelectTargets(ctx context.Context, sel repository.Selection) ([]repository.Target, error) {
	r.selection = sel
	return r.targets, nil
}

func (r *fakeRepo) RecordSent(ctx context.Context, rec repository.SentRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, rec)
	if rec.FollowUp == nil {
		return false, nil
	}
	if r.openTasks == nil {
		r.openTasks = map[uuid.UUID]bool{}
	}
	if r.openTasks[rec.ContractorID] {
		return false, nil
	}
	r.openTasks[rec.ContractorID] = true
	return true, nil
}

func (r *fakeRepo) RecordFailed(ctx context.Context, rec repository.FailedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, rec)
	return nil
}

func (r *fakeRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) { return 3, nil }

func (r *fakeRepo) Complete(ctx context.Context, id uuid.UUID, now time.Time) (repository.FollowUp, error) {
	return repository.FollowUp{}, apperr.NotFound("follow-up not found")
}

func (r *fakeRepo) ListOpen(ctx context.Context, limit int) ([]repository.FollowUp, error) {
	return nil, nil
}

type recordingSender struct {
	mu    sync.Mutex
	calls []time.Time
	msgs  []email.Message
	// errs is consumed per call; nil entries succeed.
	errs   []error
	cancel context.CancelFunc
	stopAt int
}

func (s *recordingSender) Send(ctx context.Context, msg email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, time.Now())
	s.msgs = append(s.msgs, msg)
	if s.cancel != nil && len(s.calls) == s.stopAt {
		s.cancel()
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "msg-" + uuid.NewString(), nil
}

func strPtr(s string) *string { return &s }

func makeTargets(n int) []repository.Target {
	out := make([]repository.Target, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, repository.Target{
			ContractorID:     uuid.New(),
			Email:            "owner@acme.example",
			LegalName:        "ACME BUILDERS LLC",
			ContactName:      strPtr("JANE DOE"),
			NAICSCode:        strPtr("236220"),
			Stage:            "new",
			Score:            60,
			Priority:         "high",
			PromoCode:        strPtr("GC-ABCD2345"),
			NoticeID:         "N-1",
			OpportunityTitle: "Barracks renovation",
			Link:             strPtr("https://sam.example/opp/N-1"),
			MatchCount:       3,
		})
	}
	return out
}

func newTestService(repo *fakeRepo, sender email.Sender, interval time.Duration) *Service {
	svc := New(Deps{
		Repo:   repo,
		Sender: sender,
		Signer: tracklink.NewSigner("secret", "https://api.example.com"),
		Templates: map[string]config.MessageTemplate{
			"intro": {
				Subject: "{{.Opportunity.Title}} for {{.ContractorName}}",
				HTML:    `<p>Hi {{.ContactName}}, see <a href="{{.Opportunity.Link}}">the notice</a> or <a href="{{.SignupURL}}">sign up</a>.</p>`,
			},
		},
		Config:     testOutreachConfig{interval: interval},
		AppBaseURL: "https://app.example.com",
		Log:        logger.New("development"),
	})
	svc.retryDelay = time.Millisecond
	return svc
}

func TestSendCampaignSpacesSends(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(4)}
	sender := &recordingSender{}
	svc := newTestService(repo, sender, 20*time.Millisecond)

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.Sent != 4 || len(sender.calls) != 4 {
		t.Fatalf("expected 4 sends, got summary %+v calls %d", summary, len(sender.calls))
	}
	for i := 1; i < len(sender.calls); i++ {
		if gap := sender.calls[i].Sub(sender.calls[i-1]); gap < 15*time.Millisecond {
			t.Fatalf("send %d followed the previous one after %v", i, gap)
		}
	}
}

func TestSendCampaignComposesTrackedMessage(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(1)}
	sender := &recordingSender{}
	svc := newTestService(repo, sender, time.Millisecond)

	if _, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg := sender.msgs[0]
	if msg.Subject != "Barracks renovation for Acme Builders LLC" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if strings.Contains(msg.HTML, `href="https://sam.example/opp/N-1"`) {
		t.Fatal("opportunity link was not wrapped")
	}
	for _, want := range []string{tracklink.ClickPath, tracklink.OpenPath, tracklink.UnsubscribePath} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("expected %s in html", want)
		}
	}
	if !strings.Contains(msg.Text, "Unsubscribe: https://api.example.com"+tracklink.UnsubscribePath) {
		t.Fatalf("text body missing unsubscribe line: %q", msg.Text)
	}
	if !strings.HasPrefix(msg.Headers["List-Unsubscribe"], "<https://api.example.com") {
		t.Fatalf("unexpected List-Unsubscribe %q", msg.Headers["List-Unsubscribe"])
	}
	if len(repo.sent) != 1 || repo.sent[0].ProviderMessageID == "" {
		t.Fatalf("sent log not recorded: %+v", repo.sent)
	}
	if repo.selection.ContactedBefore.IsZero() || repo.selection.Limit != 200 {
		t.Fatalf("unexpected selection %+v", repo.selection)
	}
}

func TestSendCampaignContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(3)}
	sender := &recordingSender{errs: []error{nil, email.ErrRejected, nil}}
	svc := newTestService(repo, sender, time.Millisecond)

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.Sent != 2 || summary.Failed != 1 || len(summary.Failures) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(sender.calls) != 3 {
		t.Fatalf("rejected message should not be retried, got %d calls", len(sender.calls))
	}
	if len(repo.failed) != 1 || repo.failed[0].ContractorID != repo.targets[1].ContractorID {
		t.Fatalf("failed log not recorded: %+v", repo.failed)
	}
}

func TestSendCampaignRetriesTransientFailureOnce(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(1)}
	sender := &recordingSender{errs: []error{errors.New("502 bad gateway"), nil}}
	svc := newTestService(repo, sender, time.Millisecond)

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.Sent != 1 || len(sender.calls) != 2 {
		t.Fatalf("expected one retry, summary %+v calls %d", summary, len(sender.calls))
	}
}

func TestSendCampaignRetryKeepsSendSpacing(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(2)}
	sender := &recordingSender{errs: []error{errors.New("502 bad gateway"), nil, nil}}
	svc := newTestService(repo, sender, 50*time.Millisecond)
	svc.retryDelay = 60 * time.Millisecond

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.Sent != 2 || len(sender.calls) != 3 {
		t.Fatalf("expected 2 sent over 3 calls, summary %+v calls %d", summary, len(sender.calls))
	}
	for i := 1; i < len(sender.calls); i++ {
		if gap := sender.calls[i].Sub(sender.calls[i-1]); gap < 45*time.Millisecond {
			t.Fatalf("provider call %d followed the previous one after %v", i, gap)
		}
	}
}

func TestSendCampaignProviderDownIsUnavailable(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(2)}
	down := errors.New("connection refused")
	sender := &recordingSender{errs: []error{down, down, down, down}}
	svc := newTestService(repo, sender, time.Millisecond)

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro"})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if summary.Failed != 2 || summary.Sent != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSendCampaignBatchCreatesFollowUps(t *testing.T) {
	targets := makeTargets(2)
	targets = append(targets, targets[0])
	repo := &fakeRepo{targets: targets}
	svc := newTestService(repo, &recordingSender{}, time.Millisecond)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "intro", Batch: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.Sent != 3 || summary.FollowUpsCreated != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	f := repo.sent[0].FollowUp
	if f == nil || !f.DueAt.Equal(fixed.Add(72*time.Hour)) || f.Priority != "high" {
		t.Fatalf("unexpected follow-up %+v", f)
	}
}

func TestSendCampaignStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(5)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &recordingSender{cancel: cancel, stopAt: 2}
	svc := newTestService(repo, sender, time.Millisecond)

	summary, err := svc.SendCampaign(ctx, transport.SendCampaignRequest{CampaignType: "intro"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !summary.Cancelled || summary.Sent != 2 || summary.Skipped != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(repo.sent) != 2 {
		t.Fatalf("sent logs should be written despite cancellation, got %d", len(repo.sent))
	}
}

func TestSendCampaignUnknownTemplate(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &recordingSender{}, time.Millisecond)

	_, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{CampaignType: "renewal"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendCampaignInlineTemplate(t *testing.T) {
	repo := &fakeRepo{targets: makeTargets(1)}
	sender := &recordingSender{}
	svc := newTestService(repo, sender, time.Millisecond)

	summary, err := svc.SendCampaign(context.Background(), transport.SendCampaignRequest{
		CampaignType: "announcement",
		Template:     &transport.InlineTemplate{Subject: "Hello {{.ContactName}}", HTML: "<p>Use {{.PromoCode}}</p>"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.TemplateName != "inline" || sender.msgs[0].Subject != "Hello Jane" {
		t.Fatalf("unexpected result %+v subject %q", summary, sender.msgs[0].Subject)
	}
	if !strings.Contains(sender.msgs[0].Text, "Use GC-ABCD2345") {
		t.Fatalf("text body not derived from html: %q", sender.msgs[0].Text)
	}
}

func TestMarkOverdue(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &recordingSender{}, time.Millisecond)

	resp, err := svc.MarkOverdue(context.Background())
	if err != nil || resp.MarkedOverdue != 3 {
		t.Fatalf("unexpected result %+v %v", resp, err)
	}
}
