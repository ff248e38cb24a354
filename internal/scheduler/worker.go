package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SyncRunner runs one registry sync pass with the configured defaults.
type SyncRunner interface {
	Run(ctx context.Context, req syncjob.Request) (syncjob.Summary, error)
}

// Sweep is a daily maintenance job. Running it twice on one day is harmless.
type Sweep func(ctx context.Context, now time.Time) error

// Jobs are the task implementations the worker dispatches to. Nil entries
// leave the task unregistered.
type Jobs struct {
	Signals         *ingest.Processor
	ContractorSync  SyncRunner
	OpportunitySync SyncRunner
	FollowUpSweep   Sweep
	TrialSweep      Sweep
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   Jobs
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, jobs Jobs, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetSchedulerConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			defaultQueue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Warn("scheduler task failed", "task", task.Type(), "error", err)
		}),
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		jobs:   jobs,
		log:    log,
	}
	w.register()
	return w, nil
}

func (w *Worker) register() {
	if w.jobs.Signals != nil {
		w.mux.HandleFunc(TaskTrackingSignal, w.handleTrackingSignal)
	}
	if w.jobs.ContractorSync != nil {
		w.mux.HandleFunc(TaskContractorSync, w.syncHandler(w.jobs.ContractorSync))
	}
	if w.jobs.OpportunitySync != nil {
		w.mux.HandleFunc(TaskOpportunitySync, w.syncHandler(w.jobs.OpportunitySync))
	}
	if w.jobs.FollowUpSweep != nil {
		w.mux.HandleFunc(TaskFollowUpSweep, sweepHandler(w.jobs.FollowUpSweep))
	}
	if w.jobs.TrialSweep != nil {
		w.mux.HandleFunc(TaskTrialSweep, sweepHandler(w.jobs.TrialSweep))
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleTrackingSignal(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTrackingSignalPayload(task)
	if err != nil {
		return fmt.Errorf("decode signal: %v: %w", err, asynq.SkipRetry)
	}

	err = w.jobs.Signals.Process(ctx, payload)
	if errors.Is(err, ingest.ErrPermanent) {
		w.log.Warn("engagement signal dropped", "signal", payload.Kind, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// syncHandler maps run outcomes onto asynq retries. A run that is already
// in progress elsewhere is not retried; an unreachable registry is.
func (w *Worker) syncHandler(runner SyncRunner) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		summary, err := runner.Run(ctx, syncjob.Request{})
		switch {
		case apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindConfiguration):
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		case err != nil:
			return err
		}
		w.log.Info("scheduled sync finished", "kind", summary.Kind, "status", summary.Status, "runId", summary.RunID)
		return nil
	}
}

func sweepHandler(sweep Sweep) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		return sweep(ctx, time.Now().UTC())
	}
}
