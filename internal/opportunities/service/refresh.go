package service

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"govcon_outreach_backend/internal/opportunities/repository"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
)

const defaultWriteWorkers = 4

// OpportunitySource streams notices for one code.
type OpportunitySource interface {
	Opportunities(ctx context.Context, q registry.Query) iter.Seq2[registry.OpportunityRecord, error]
}

// RefreshStrategy is the opportunity side of the sync runner. Every code is
// fetched first; the deactivate step and the upserts run in Finish so the
// table only goes stale-to-fresh once per refresh.
type RefreshStrategy struct {
	source  OpportunitySource
	repo    repository.Writer
	reads   *Service
	workers int
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	req     syncjob.Request
	pending map[string]registry.OpportunityRecord
	order   []string
}

// NewRefreshStrategy creates the opportunity refresh strategy.
func NewRefreshStrategy(source OpportunitySource, repo repository.Writer, reads *Service, workers int, log *logger.Logger) *RefreshStrategy {
	if workers <= 0 {
		workers = defaultWriteWorkers
	}
	return &RefreshStrategy{
		source:  source,
		repo:    repo,
		reads:   reads,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

var _ syncjob.Strategy = (*RefreshStrategy)(nil)

// Kind implements syncjob.Strategy.
func (s *RefreshStrategy) Kind() syncjob.Kind {
	return syncjob.KindOpportunities
}

// Begin resets the per-run buffer.
func (s *RefreshStrategy) Begin(_ context.Context, req syncjob.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = req
	s.pending = make(map[string]registry.OpportunityRecord)
	s.order = s.order[:0]
	return nil
}

// IngestCode buffers the notices for code. Records without a notice id are
// counted as skipped.
func (s *RefreshStrategy) IngestCode(ctx context.Context, code string, req syncjob.Request, budget int) (syncjob.CodeResult, error) {
	var result syncjob.CodeResult
	query := registry.Query{Code: code, From: req.From, To: req.To, MaxRecords: budget}

	for record, err := range s.source.Opportunities(ctx, query) {
		if err != nil {
			return result, err
		}
		result.Fetched++
		result.Raw = append(result.Raw, json.RawMessage(record.Raw))
		if !record.Valid() {
			result.Skipped++
			metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindOpportunities), "skipped").Inc()
			continue
		}
		s.buffer(record)
	}
	return result, nil
}

func (s *RefreshStrategy) buffer(record registry.OpportunityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.pending[record.NoticeID]; !seen {
		s.order = append(s.order, record.NoticeID)
	}
	s.pending[record.NoticeID] = record
}

// Finish deactivates the refreshed scope, then upserts every buffered notice
// with a bounded number of concurrent writers.
func (s *RefreshStrategy) Finish(ctx context.Context, summary *syncjob.Summary) error {
	s.mu.Lock()
	records := make([]registry.OpportunityRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.pending[id])
	}
	req := s.req
	s.mu.Unlock()

	scope, deactivate := deactivationScope(req, summary)
	if !deactivate {
		s.log.Warn("opportunity refresh reached no code cleanly, leaving existing rows active",
			"runId", summary.RunID, "codeErrors", len(summary.Errors))
	} else {
		n, err := s.repo.DeactivateActive(ctx, scope)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			s.log.Warn("opportunity refresh fetched no records, prior rows kept inactive",
				"runId", summary.RunID, "deactivated", n)
		}
	}

	syncedAt := s.now().UTC()
	var inserted, updated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, record := range records {
		g.Go(func() error {
			isNew, err := s.repo.Upsert(gctx, toUpsertParams(record, syncedAt))
			switch {
			case err != nil:
				failed.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindOpportunities), "failed").Inc()
				s.log.Warn("opportunity upsert failed", "noticeId", record.NoticeID, "error", err)
			case isNew:
				inserted.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindOpportunities), "new").Inc()
			default:
				updated.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindOpportunities), "updated").Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	summary.New += int(inserted.Load())
	summary.Updated += int(updated.Load())
	summary.Failed += int(failed.Load())

	if s.reads != nil {
		s.reads.InvalidateCache(ctx)
	}
	return nil
}

// deactivationScope decides which active rows the refresh replaces. A nil
// scope with deactivate=true covers the whole table.
func deactivationScope(req syncjob.Request, summary *syncjob.Summary) ([]string, bool) {
	if len(summary.SucceededCodes) == 0 {
		return nil, false
	}
	if !req.Filtered && len(summary.Errors) == 0 {
		return nil, true
	}
	return summary.SucceededCodes, true
}

func toUpsertParams(r registry.OpportunityRecord, syncedAt time.Time) repository.UpsertParams {
	return repository.UpsertParams{
		NoticeID:           r.NoticeID,
		Title:              r.Title,
		SolicitationNumber: r.SolicitationNumber,
		Agency:             r.Agency,
		NAICSCode:          r.NAICSCode,
		SetAside:           r.SetAside,
		NoticeType:         r.NoticeType,
		Description:        r.Description,
		PostedDate:         r.PostedDate,
		ResponseDeadline:   r.ResponseDeadline,
		Link:               r.Link,
		SyncedAt:           syncedAt,
	}
}
