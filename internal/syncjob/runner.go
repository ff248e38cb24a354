package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/adapters/storage"
	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
)

const (
	lockTTL            = 45 * time.Minute
	maxArchivedRecords = 5000
)

// RunStore persists sync_runs audit records.
type RunStore interface {
	Insert(ctx context.Context, summary Summary) error
	List(ctx context.Context, kind Kind, limit int) ([]Summary, error)
}

// Defaults supplies request values the caller left out.
type Defaults struct {
	Codes      []string
	Window     time.Duration
	MaxRecords int
}

// Runner executes sync runs for one strategy.
type Runner struct {
	strategy Strategy
	store    RunStore
	locker   Locker
	archive  storage.Archive
	bus      events.Bus
	defaults Defaults
	log      *logger.Logger
	now      func() time.Time
}

// NewRunner wires a strategy to its audit store and lock.
func NewRunner(strategy Strategy, store RunStore, locker Locker, archive storage.Archive, bus events.Bus, defaults Defaults, log *logger.Logger) *Runner {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Runner{
		strategy: strategy,
		store:    store,
		locker:   locker,
		archive:  archive,
		bus:      bus,
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

// Kind returns the strategy kind this runner drives.
func (r *Runner) Kind() Kind {
	return r.strategy.Kind()
}

// Run executes one sync pass. Codes are processed one at a time and the
// context is only checked between codes. The audit record is written for
// every outcome. A run that reached the registry returns a nil error even
// when some codes failed; a run that never got a record back returns an
// unavailable or configuration error alongside the summary.
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	req = r.withDefaults(req)
	kind := r.strategy.Kind()

	release, err := r.locker.Acquire(ctx, string(kind), lockTTL)
	if errors.Is(err, ErrLockNotAcquired) {
		return r.skipped(ctx, req)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("acquire sync lock: %w", err)
	}
	defer release(context.WithoutCancel(ctx))

	summary := Summary{
		RunID:     uuid.New(),
		Kind:      kind,
		Status:    StatusRunning,
		From:      req.From,
		To:        req.To,
		Codes:     req.Codes,
		Errors:    []CodeError{},
		StartedAt: r.now().UTC(),
	}
	runID := summary.RunID.String()
	job := "sync." + string(kind)
	r.log.JobStarted(job, runID)

	raw, runErr := r.execute(ctx, req, &summary)

	summary.FinishedAt = r.now().UTC()
	summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
	if runErr != nil && summary.Error == "" {
		summary.Error = runErr.Error()
	}

	// The audit trail survives cancellation of the triggering request.
	persistCtx := context.WithoutCancel(ctx)
	r.archiveRaw(persistCtx, &summary, raw)
	if err := r.store.Insert(persistCtx, summary); err != nil {
		r.log.DatabaseError("insert sync run", err)
	}

	metrics.SyncRunDuration.WithLabelValues(string(kind), string(summary.Status)).
		Observe(float64(summary.DurationMs) / 1000)
	r.log.JobFinished(job, runID, string(summary.Status), summary.DurationMs,
		"fetched", summary.Fetched, "new", summary.New, "updated", summary.Updated,
		"skipped", summary.Skipped, "failed", summary.Failed, "codeErrors", len(summary.Errors))

	if r.bus != nil {
		r.bus.Publish(persistCtx, events.SyncCompleted{
			BaseEvent: events.NewBaseEvent(),
			RunID:     summary.RunID,
			Kind:      string(kind),
			Status:    string(summary.Status),
			Fetched:   summary.Fetched,
			New:       summary.New,
			Updated:   summary.Updated,
			Duration:  time.Duration(summary.DurationMs) * time.Millisecond,
		})
	}

	return summary, runErr
}

// skipped records a trigger that lost the lock race. The row lets operators
// see that a scheduled run did not happen.
func (r *Runner) skipped(ctx context.Context, req Request) (Summary, error) {
	kind := r.strategy.Kind()
	conflict := apperr.Conflict(fmt.Sprintf("a %s sync is already running", kind))
	now := r.now().UTC()
	summary := Summary{
		RunID:      uuid.New(),
		Kind:       kind,
		Status:     StatusSkipped,
		From:       req.From,
		To:         req.To,
		Codes:      req.Codes,
		Errors:     []CodeError{},
		Error:      conflict.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
	if err := r.store.Insert(context.WithoutCancel(ctx), summary); err != nil {
		r.log.DatabaseError("insert sync run", err)
	}
	r.log.JobFinished("sync."+string(kind), summary.RunID.String(), string(StatusSkipped), 0)
	return summary, conflict
}

func (r *Runner) execute(ctx context.Context, req Request, summary *Summary) ([]json.RawMessage, error) {
	if err := r.strategy.Begin(ctx, req); err != nil {
		summary.Status = StatusFailed
		return nil, fmt.Errorf("begin %s sync: %w", req.Kind, err)
	}

	var raw []json.RawMessage
	var consecutiveFailures int
	cancelled := false

	for _, code := range req.Codes {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		budget := 0
		if req.MaxRecords > 0 {
			budget = req.MaxRecords - summary.Fetched
			if budget <= 0 {
				break
			}
		}

		result, err := r.strategy.IngestCode(ctx, code, req, budget)
		summary.add(result)
		if room := maxArchivedRecords - len(raw); room > 0 {
			raw = append(raw, result.Raw[:min(room, len(result.Raw))]...)
		}

		if err == nil {
			consecutiveFailures = 0
			summary.SucceededCodes = append(summary.SucceededCodes, code)
			continue
		}

		summary.Errors = append(summary.Errors, CodeError{
			Code:      code,
			Error:     err.Error(),
			Fetched:   result.Fetched,
			permanent: errors.Is(err, registry.ErrPermanent),
		})
		r.log.Warn("sync code failed", "kind", req.Kind, "code", code, "fetched", result.Fetched, "error", err)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			cancelled = true
			break
		}
		if result.Fetched == 0 && isUpstreamFailure(err) {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}
		if consecutiveFailures >= MaxConsecutiveCodeFailures {
			summary.Status = StatusAborted
			summary.Error = fmt.Sprintf("aborted after %d consecutive code failures", consecutiveFailures)
			break
		}
	}

	if cancelled {
		summary.Status = StatusCancelled
		return raw, nil
	}

	if err := r.strategy.Finish(ctx, summary); err != nil {
		summary.Status = StatusFailed
		return raw, fmt.Errorf("finish %s sync: %w", req.Kind, err)
	}

	if summary.Status == StatusRunning {
		switch {
		case len(summary.Errors) == 0:
			summary.Status = StatusSucceeded
		case summary.Fetched > 0 || len(summary.SucceededCodes) > 0:
			summary.Status = StatusPartial
		default:
			summary.Status = StatusFailed
		}
	}

	return raw, unreachableError(summary)
}

// unreachableError reports runs where every code failed upstream and nothing
// came back.
func unreachableError(summary *Summary) error {
	if summary.Fetched > 0 || len(summary.SucceededCodes) > 0 || len(summary.Errors) == 0 {
		return nil
	}
	if summary.Status != StatusFailed && summary.Status != StatusAborted {
		return nil
	}

	allPermanent := true
	for _, codeErr := range summary.Errors {
		if !codeErr.permanent {
			allPermanent = false
			break
		}
	}
	if allPermanent {
		return apperr.Configuration("registry rejected every request").WithDetails(*summary)
	}
	return apperr.Unavailable("registry could not be reached").WithDetails(*summary)
}

func isUpstreamFailure(err error) bool {
	return errors.Is(err, registry.ErrRateLimited) ||
		errors.Is(err, registry.ErrTransient) ||
		errors.Is(err, registry.ErrPermanent)
}

func (r *Runner) withDefaults(req Request) Request {
	req.Kind = r.strategy.Kind()
	if len(req.Codes) == 0 {
		req.Codes = slices.Clone(r.defaults.Codes)
		req.Filtered = false
	} else {
		req.Filtered = true
	}
	if req.MaxRecords <= 0 {
		req.MaxRecords = r.defaults.MaxRecords
	}
	if req.To == nil && req.From == nil && r.defaults.Window > 0 {
		to := r.now().UTC()
		from := to.Add(-r.defaults.Window)
		req.From, req.To = &from, &to
	}
	return req
}

func (r *Runner) archiveRaw(ctx context.Context, summary *Summary, raw []json.RawMessage) {
	if len(raw) == 0 || r.archive == nil {
		return
	}
	if _, noop := r.archive.(storage.NoopArchive); noop {
		return
	}
	key := fmt.Sprintf("sync-runs/%s.json", summary.RunID)
	payload, err := json.Marshal(struct {
		Run     Summary           `json:"run"`
		Records []json.RawMessage `json:"records"`
	}{Run: *summary, Records: raw})
	if err != nil {
		r.log.Warn("encode sync archive", "runId", summary.RunID, "error", err)
		return
	}
	if err := r.archive.Put(ctx, key, "application/json", payload); err != nil {
		r.log.Warn("archive sync payload", "runId", summary.RunID, "error", err)
		return
	}
	summary.ArchiveKey = key
}

// History lists recent runs of this runner's kind.
func (r *Runner) History(ctx context.Context, limit int) ([]Summary, error) {
	return r.store.List(ctx, r.strategy.Kind(), limit)
}
