package scheduler

import (
	"context"
	"fmt"
	"time"

	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Entry is one periodic task registration.
type Entry struct {
	Cron string
	Task string
	// Unique keeps a second enqueue of the same task out while one is pending.
	Unique time.Duration
	Retry  int
}

// Entries returns the periodic tasks for cfg. Entries with an empty cron
// expression are disabled.
func Entries(cfg config.SchedulerConfig) []Entry {
	all := []Entry{
		{Cron: cfg.GetContractorSyncCron(), Task: TaskContractorSync, Unique: time.Hour, Retry: 2},
		{Cron: cfg.GetOpportunitySyncCron(), Task: TaskOpportunitySync, Unique: time.Hour, Retry: 2},
		{Cron: cfg.GetSweepCron(), Task: TaskFollowUpSweep, Unique: 30 * time.Minute, Retry: 3},
		{Cron: cfg.GetSweepCron(), Task: TaskTrialSweep, Unique: 30 * time.Minute, Retry: 3},
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Cron != "" {
			out = append(out, e)
		}
	}
	return out
}

// Cron enqueues the periodic tasks. Only one scheduler process should run.
type Cron struct {
	scheduler *asynq.Scheduler
	entries   []Entry
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("periodic task not enqueued", "error", err)
			}
		},
	})

	entries := Entries(cfg)
	for _, e := range entries {
		id, err := s.Register(e.Cron, newPeriodicTask(e.Task),
			asynq.Queue(defaultQueue), asynq.Unique(e.Unique), asynq.MaxRetry(e.Retry))
		if err != nil {
			return nil, fmt.Errorf("register %s (%s): %w", e.Task, e.Cron, err)
		}
		log.Info("periodic task registered", "task", e.Task, "cron", e.Cron, "entryId", id)
	}

	return &Cron{scheduler: s, entries: entries, log: log}, nil
}

func (c *Cron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}

	if err := c.scheduler.Start(); err != nil {
		c.log.Error("scheduler not started", "error", err)
		return
	}
	<-ctx.Done()
	c.scheduler.Shutdown()
}
