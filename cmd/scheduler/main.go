package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"govcon_outreach_backend/internal/adapters/storage"
	"govcon_outreach_backend/internal/bootstrap"
	"govcon_outreach_backend/internal/email"
	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/outreach"
	"govcon_outreach_backend/internal/relay"
	"govcon_outreach_backend/internal/scheduler"
	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/db"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := bootstrap.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, db.AppScheduler)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil || rdb == nil {
		log.Error("scheduler requires redis", "error", err)
		panic("scheduler requires REDIS_URL")
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	if cfg.IsKafkaEnabled() {
		eventRelay, err := relay.New(cfg, log)
		if err != nil {
			log.Error("failed to initialize event relay", "error", err)
			panic("failed to initialize event relay: " + err.Error())
		}
		defer func() { _ = eventRelay.Close() }()
		eventRelay.Subscribe(eventBus)
	}

	archive, err := storage.NewArchive(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize sync archive", "error", err)
		panic("failed to initialize sync archive: " + err.Error())
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	val := validator.New()
	signer := tracklink.NewSigner(cfg.GetTrackingSecret(), cfg.GetPublicAPIBaseURL())

	// Worker-side wiring (no HTTP handlers required).
	core := bootstrap.NewCore(cfg, pool, rdb, archive, eventBus, val, log)
	outreachModule := outreach.NewModule(pool, sender, signer, eventBus, cfg, val, log)
	pipelineSvc := core.Pipeline.Service()

	worker, err := scheduler.NewWorker(cfg, scheduler.Jobs{
		Signals:         ingest.NewProcessor(pipelineSvc, log),
		ContractorSync:  core.ContractorSync,
		OpportunitySync: core.OpportunitySync,
		FollowUpSweep: func(ctx context.Context, now time.Time) error {
			_, err := outreachModule.Service().MarkOverdue(ctx)
			return err
		},
		TrialSweep: func(ctx context.Context, now time.Time) error {
			_, err := pipelineSvc.ExpireTrials(ctx, now)
			return err
		},
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic tasks", "error", err)
		panic("failed to initialize periodic tasks: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cron.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	wg.Wait()
	log.Info("scheduler stopped")
}
