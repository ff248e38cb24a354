// Package service is the outreach dispatcher: audience selection, message
// rendering with tracked links, throttled delivery and follow-up tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"govcon_outreach_backend/internal/email"
	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/outreach/repository"
	"govcon_outreach_backend/internal/outreach/transport"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
)

const (
	maxReportedFailures = 50
	sendAttempts        = 2
	defaultRetryDelay   = 2 * time.Second
	defaultFollowUpList = 100
)

// Deps are the collaborators of the dispatcher.
type Deps struct {
	Repo       repository.Repository
	Sender     email.Sender
	Signer     *tracklink.Signer
	Templates  map[string]config.MessageTemplate
	Config     config.OutreachConfig
	AppBaseURL string
	Bus        events.Bus
	Log        *logger.Logger
}

// Service dispatches campaigns and manages follow-up tasks.
type Service struct {
	repo       repository.Repository
	sender     email.Sender
	signer     *tracklink.Signer
	templates  map[string]config.MessageTemplate
	cfg        config.OutreachConfig
	appBaseURL string
	bus        events.Bus
	log        *logger.Logger

	limiter    *rate.Limiter
	retryDelay time.Duration
	now        func() time.Time
}

// New creates the dispatcher. The send limiter is shared by every campaign
// this service runs, so concurrent campaigns still respect the interval.
func New(deps Deps) *Service {
	return &Service{
		repo:       deps.Repo,
		sender:     deps.Sender,
		signer:     deps.Signer,
		templates:  deps.Templates,
		cfg:        deps.Config,
		appBaseURL: strings.TrimRight(deps.AppBaseURL, "/"),
		bus:        deps.Bus,
		log:        deps.Log,
		limiter:    rate.NewLimiter(rate.Every(deps.Config.GetOutreachMinSendInterval()), 1),
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

// SendCampaign selects the audience and sends one message per recipient,
// strictly one at a time. A failed recipient is logged and the batch
// continues. Cancellation is honoured between recipients.
func (s *Service) SendCampaign(ctx context.Context, req transport.SendCampaignRequest) (transport.CampaignSummary, error) {
	started := s.now()
	tmpl, templateName, err := s.resolveTemplate(req)
	if err != nil {
		return transport.CampaignSummary{}, err
	}

	limit := req.Selection.Limit
	if limit <= 0 || limit > s.cfg.GetCampaignBatchLimit() {
		limit = s.cfg.GetCampaignBatchLimit()
	}
	targets, err := s.repo.SelectTargets(ctx, repository.Selection{
		Stages:          req.Selection.Stages,
		CodePrefixes:    req.Selection.Classifications,
		MinScore:        req.Selection.MinScore,
		Priority:        req.Selection.Priority,
		ContractorIDs:   req.Selection.ContractorIDs,
		ContactedBefore: started.Add(-s.cfg.GetOutreachCooldown()),
		Limit:           limit,
	})
	if err != nil {
		return transport.CampaignSummary{}, err
	}

	summary := transport.CampaignSummary{
		CampaignType: req.CampaignType,
		TemplateName: templateName,
		Selected:     len(targets),
	}
	runID := uuid.NewString()
	job := "outreach." + req.CampaignType
	s.log.JobStarted(job, runID)

	transientFailures := 0
	for i, target := range targets {
		if ctx.Err() != nil {
			summary.Cancelled = true
			summary.Skipped += len(targets) - i
			break
		}

		logID := uuid.New()
		msg, err := s.compose(tmpl, target, logID, req.CampaignType)
		if err != nil {
			summary.Skipped++
			metrics.OutreachSendsTotal.WithLabelValues(req.CampaignType, "skipped").Inc()
			s.log.Warn("outreach message not rendered", "contractorId", target.ContractorID, "error", err)
			continue
		}

		providerID, err := s.deliver(ctx, msg)
		if errors.Is(err, errStopped) {
			summary.Cancelled = true
			summary.Skipped += len(targets) - i
			break
		}
		persistCtx := context.WithoutCancel(ctx)
		if err != nil {
			summary.Failed++
			if !errors.Is(err, email.ErrRejected) {
				transientFailures++
			}
			if len(summary.Failures) < maxReportedFailures {
				summary.Failures = append(summary.Failures, transport.RecipientFailure{ContractorID: target.ContractorID, Error: err.Error()})
			}
			metrics.OutreachSendsTotal.WithLabelValues(req.CampaignType, "failed").Inc()
			s.log.Warn("outreach send failed", "contractorId", target.ContractorID, "error", err)
			if recErr := s.repo.RecordFailed(persistCtx, repository.FailedRecord{
				LogID:        logID,
				ContractorID: target.ContractorID,
				CampaignType: req.CampaignType,
				TemplateName: templateName,
				Recipient:    msg.To,
				Subject:      msg.Subject,
				Error:        err.Error(),
			}); recErr != nil {
				s.log.DatabaseError("record failed email", recErr)
			}
			continue
		}

		summary.Sent++
		metrics.OutreachSendsTotal.WithLabelValues(req.CampaignType, "sent").Inc()
		created, err := s.repo.RecordSent(persistCtx, repository.SentRecord{
			LogID:             logID,
			ContractorID:      target.ContractorID,
			CampaignType:      req.CampaignType,
			TemplateName:      templateName,
			Recipient:         msg.To,
			Subject:           msg.Subject,
			HTML:              msg.HTML,
			Text:              msg.Text,
			ProviderMessageID: providerID,
			SentAt:            s.now().UTC(),
			FollowUp:          s.followUpFor(req, target),
		})
		if err != nil {
			s.log.DatabaseError("record sent email", err)
			continue
		}
		if created {
			summary.FollowUpsCreated++
		}
	}

	summary.DurationMs = s.now().Sub(started).Milliseconds()
	s.log.JobFinished(job, runID, campaignStatus(summary), summary.DurationMs,
		"selected", summary.Selected, "sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed,
		"requestedBy", req.RequestedBy)

	if s.bus != nil {
		s.bus.Publish(context.WithoutCancel(ctx), events.CampaignSent{
			BaseEvent:    events.NewBaseEvent(),
			CampaignType: req.CampaignType,
			TemplateName: templateName,
			Sent:         summary.Sent,
			Skipped:      summary.Skipped,
			Failed:       summary.Failed,
		})
	}

	if summary.Sent == 0 && transientFailures > 0 && transientFailures == summary.Failed {
		return summary, apperr.Unavailable("email provider could not be reached").WithDetails(summary)
	}
	return summary, nil
}

func campaignStatus(s transport.CampaignSummary) string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case s.Failed == 0:
		return "succeeded"
	case s.Sent > 0:
		return "partial"
	default:
		return "failed"
	}
}

func (s *Service) resolveTemplate(req transport.SendCampaignRequest) (*compiledTemplate, string, error) {
	if req.Template != nil {
		name := req.TemplateName
		if name == "" {
			name = "inline"
		}
		tmpl, err := compile(name, config.MessageTemplate{Subject: req.Template.Subject, HTML: req.Template.HTML, Text: req.Template.Text})
		if err != nil {
			return nil, "", apperr.Validation(err.Error())
		}
		return tmpl, name, nil
	}

	name := req.TemplateName
	if name == "" {
		name = req.CampaignType
	}
	raw, ok := s.templates[name]
	if !ok {
		return nil, "", apperr.Validation(fmt.Sprintf("unknown template %q", name))
	}
	tmpl, err := compile(name, raw)
	if err != nil {
		return nil, "", apperr.Configuration(err.Error())
	}
	return tmpl, name, nil
}

// compose renders the message for one target with tracked links, the open
// pixel and the unsubscribe link.
func (s *Service) compose(tmpl *compiledTemplate, t repository.Target, logID uuid.UUID, campaignType string) (email.Message, error) {
	rendered, err := tmpl.render(buildMessageData(t, s.signupURL(t)))
	if err != nil {
		return email.Message{}, err
	}

	body, err := rewriteHTML(rendered.HTML, s.signer, logID, t.ContractorID)
	if err != nil {
		return email.Message{}, err
	}
	html, err := email.RenderLayout(email.LayoutData{
		Subject: rendered.Subject,
		Body:    template.HTML(body),
		Footer:  trackingFooter(s.signer, logID, t.ContractorID),
	})
	if err != nil {
		return email.Message{}, err
	}

	contactName := ""
	if t.ContactName != nil {
		contactName = displayName(*t.ContactName)
	}
	return email.Message{
		To:      t.Email,
		ToName:  contactName,
		Subject: rendered.Subject,
		HTML:    html,
		Text:    rewriteText(rendered.Text, s.signer, logID, t.ContractorID) + textFooter(s.signer, logID, t.ContractorID),
		Tags:    []string{campaignType},
		Headers: map[string]string{
			"List-Unsubscribe": "<" + s.signer.UnsubscribeURL(logID, t.ContractorID) + ">",
		},
	}, nil
}

func (s *Service) signupURL(t repository.Target) string {
	q := url.Values{}
	q.Set("contractor_id", t.ContractorID.String())
	if t.PromoCode != nil {
		q.Set("promo", *t.PromoCode)
	}
	return s.appBaseURL + "/signup?" + q.Encode()
}

// errStopped means the batch was cancelled before the message reached the
// provider.
var errStopped = errors.New("send stopped before provider call")

// deliver calls the provider with a per-call timeout and retries once unless
// the provider rejected the message outright. Every attempt, retries
// included, takes a token from the shared limiter.
func (s *Service) deliver(ctx context.Context, msg email.Message) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return "", lastErr
			}
			return "", errStopped
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.GetOutreachSendTimeout())
		id, err := s.sender.Send(callCtx, msg)
		cancel()
		if err == nil {
			return id, nil
		}
		lastErr = err
		if errors.Is(err, email.ErrRejected) || ctx.Err() != nil || attempt == sendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", lastErr
		case <-time.After(s.retryDelay):
		}
	}
	return "", lastErr
}

func (s *Service) followUpFor(req transport.SendCampaignRequest, t repository.Target) *repository.FollowUpParams {
	if !req.Batch {
		return nil
	}
	name := t.LegalName
	if t.DBAName != nil && *t.DBAName != "" {
		name = *t.DBAName
	}
	return &repository.FollowUpParams{
		Title:    fmt.Sprintf("Follow up with %s after %s email", displayName(name), req.CampaignType),
		Priority: t.Priority,
		DueAt:    s.now().UTC().Add(s.cfg.GetFollowUpDelay()),
	}
}

// MarkOverdue is the daily follow-up sweep.
func (s *Service) MarkOverdue(ctx context.Context) (transport.SweepResponse, error) {
	now := s.now().UTC()
	runID := uuid.NewString()
	s.log.JobStarted("sweep.follow_ups", runID)

	n, err := s.repo.MarkOverdue(ctx, now)
	if err != nil {
		s.log.JobFinished("sweep.follow_ups", runID, "failed", s.now().Sub(now).Milliseconds(), "error", err)
		return transport.SweepResponse{}, err
	}
	s.log.JobFinished("sweep.follow_ups", runID, "succeeded", s.now().Sub(now).Milliseconds(), "markedOverdue", n)
	return transport.SweepResponse{MarkedOverdue: n, RanAt: now}, nil
}

// CompleteFollowUp closes a follow-up task.
func (s *Service) CompleteFollowUp(ctx context.Context, id uuid.UUID) (transport.FollowUpResponse, error) {
	f, err := s.repo.Complete(ctx, id, s.now().UTC())
	if err != nil {
		return transport.FollowUpResponse{}, err
	}
	return toFollowUpResponse(f), nil
}

// ListFollowUps returns open follow-up tasks.
func (s *Service) ListFollowUps(ctx context.Context, req transport.ListFollowUpsRequest) ([]transport.FollowUpResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultFollowUpList
	}
	items, err := s.repo.ListOpen(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]transport.FollowUpResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toFollowUpResponse(item))
	}
	return out, nil
}

func toFollowUpResponse(f repository.FollowUp) transport.FollowUpResponse {
	return transport.FollowUpResponse{
		ID:           f.ID,
		ContractorID: f.ContractorID,
		EmailLogID:   f.EmailLogID,
		Label:        f.Label,
		Title:        f.Title,
		Priority:     f.Priority,
		Status:       f.Status,
		DueAt:        f.DueAt,
		DoneAt:       f.DoneAt,
		CreatedAt:    f.CreatedAt,
	}
}
