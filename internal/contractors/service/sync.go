package service

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"govcon_outreach_backend/internal/contractors/repository"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/scoring"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
)

const defaultWriteWorkers = 4

// EntitySource streams contractor registrations for one code.
type EntitySource interface {
	Entities(ctx context.Context, q registry.Query) iter.Seq2[registry.EntityRecord, error]
}

// MarketSource builds the scoring market from active opportunities.
type MarketSource interface {
	Market(ctx context.Context, asOf time.Time) (scoring.Market, error)
}

// SyncStrategy is the contractor side of the sync runner. Each fetched
// record goes through the intake filter, is rescored against today's market
// and upserted by UEI.
type SyncStrategy struct {
	source  EntitySource
	markets MarketSource
	repo    repository.Writer
	workers int
	log     *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	market scoring.Market
}

// NewSyncStrategy creates the contractor sync strategy. markets may be nil,
// in which case no opportunity match contributes to scores.
func NewSyncStrategy(source EntitySource, markets MarketSource, repo repository.Writer, workers int, log *logger.Logger) *SyncStrategy {
	if workers <= 0 {
		workers = defaultWriteWorkers
	}
	return &SyncStrategy{
		source:  source,
		markets: markets,
		repo:    repo,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

var _ syncjob.Strategy = (*SyncStrategy)(nil)

// Kind implements syncjob.Strategy.
func (s *SyncStrategy) Kind() syncjob.Kind {
	return syncjob.KindContractors
}

// Begin loads the market once per run so every record is scored against the
// same set of active opportunities.
func (s *SyncStrategy) Begin(ctx context.Context, _ syncjob.Request) error {
	asOf := s.now().UTC()
	market := scoring.NewMarket(nil, asOf)
	if s.markets != nil {
		loaded, err := s.markets.Market(ctx, asOf)
		if err != nil {
			return err
		}
		market = loaded
	}
	s.mu.Lock()
	s.market = market
	s.mu.Unlock()
	return nil
}

// IngestCode fetches one code and writes the admitted records with a bounded
// number of concurrent writers. Upstream errors end the code but the records
// already fetched are still written.
func (s *SyncStrategy) IngestCode(ctx context.Context, code string, req syncjob.Request, budget int) (syncjob.CodeResult, error) {
	s.mu.RLock()
	market := s.market
	s.mu.RUnlock()

	var (
		result                  syncjob.CodeResult
		inserted, updated, fail atomic.Int64
		upstreamErr             error
	)
	syncedAt := s.now().UTC()
	query := registry.Query{Code: code, From: req.From, To: req.To, MaxRecords: budget}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for record, err := range s.source.Entities(ctx, query) {
		if err != nil {
			upstreamErr = err
			break
		}
		result.Fetched++
		result.Raw = append(result.Raw, json.RawMessage(record.Raw))

		params, reason := Admit(record, market, syncedAt)
		if reason != skipReasonAccepted {
			result.Skipped++
			metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindContractors), "skipped").Inc()
			s.log.Debug("contractor skipped", "code", code, "uei", record.UEI, "reason", reason)
			continue
		}

		g.Go(func() error {
			if params.Email == "" {
				stored, err := s.repo.StoredEmail(gctx, params.UEI)
				if err != nil {
					s.log.Warn("stored email lookup failed", "uei", params.UEI, "error", err)
				} else if stored != "" {
					params = Rescore(params, stored, market)
				}
			}
			res, err := s.repo.Upsert(gctx, params)
			switch {
			case err != nil:
				fail.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindContractors), "failed").Inc()
				s.log.Warn("contractor upsert failed", "uei", params.UEI, "error", err)
			case res.Inserted:
				inserted.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindContractors), "new").Inc()
			default:
				updated.Add(1)
				metrics.SyncRecordsTotal.WithLabelValues(string(syncjob.KindContractors), "updated").Inc()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	result.New = int(inserted.Load())
	result.Updated = int(updated.Load())
	result.Failed = int(fail.Load())
	return result, upstreamErr
}

// Finish implements syncjob.Strategy. Contractor writes happen per code, so
// there is nothing left to flush.
func (s *SyncStrategy) Finish(_ context.Context, _ *syncjob.Summary) error {
	return nil
}
