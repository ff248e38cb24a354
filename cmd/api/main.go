package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"govcon_outreach_backend/internal/adapters/storage"
	"govcon_outreach_backend/internal/bootstrap"
	"govcon_outreach_backend/internal/email"
	"govcon_outreach_backend/internal/events"
	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/internal/http/router"
	"govcon_outreach_backend/internal/outreach"
	"govcon_outreach_backend/internal/relay"
	"govcon_outreach_backend/internal/scheduler"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/internal/tracking"
	"govcon_outreach_backend/internal/tracking/ingest"
	"govcon_outreach_backend/internal/tracklink"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/db"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/ratelimit"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	localSignalWorkers  = 4
	localSignalCapacity = 2048
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := bootstrap.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := bootstrap.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, db.AppAPI)
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
	log.Info("database connection established")

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("REDIS_URL not configured; caches, locks and rate limits are process-local")
	}

	// Event bus for decoupled communication between modules
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
		log.Info("event relay enabled", "topic", cfg.GetKafkaPipelineTopic())
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

	// Shared validator instance for dependency injection
	val := validator.New()
	signer := tracklink.NewSigner(cfg.GetTrackingSecret(), cfg.GetPublicAPIBaseURL())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	core := bootstrap.NewCore(cfg, pool, rdb, archive, eventBus, val, log)
	outreachModule := outreach.NewModule(pool, sender, signer, eventBus, cfg, val, log)
	syncModule := syncjob.NewModule(core.SyncStore, val, core.ContractorSync, core.OpportunitySync)

	signalQueue, closeQueue := initSignalQueue(cfg, ingest.NewProcessor(core.Pipeline.Service(), log), log)
	defer closeQueue()
	trackingModule := tracking.NewModule(signer, signalQueue, cfg.GetAppBaseURL(), val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      pool,
		RateLimiter: newRateLimiter(ctx, cfg, rdb),
		Modules: []apphttp.Module{
			core.Contractors,
			core.Opportunities,
			core.Pipeline,
			syncModule,
			outreachModule,
			trackingModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initSignalQueue uses the Redis task queue when available so signals
// survive restarts; otherwise signals are applied in-process.
func initSignalQueue(cfg config.SchedulerConfig, processor *ingest.Processor, log *logger.Logger) (ingest.SignalQueue, func()) {
	if cfg.GetRedisURL() != "" {
		client, err := scheduler.NewClient(cfg)
		if err == nil {
			return client, func() { _ = client.Close() }
		}
		log.Error("failed to initialize task queue client; using in-process signal queue", "error", err)
	}

	queue := ingest.NewLocalQueue(processor, localSignalWorkers, localSignalCapacity, log)
	return queue, queue.Close
}

func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, rdb redis.UniversalClient) ratelimit.Counter {
	if rdb != nil {
		return ratelimit.NewRedisCounter(rdb, "govcon:ratelimit:", cfg.GetPublicRateLimit(), cfg.GetPublicRateWindow())
	}

	counter := ratelimit.NewMemoryCounter(cfg.GetPublicRateLimit(), cfg.GetPublicRateWindow())
	go func() {
		ticker := time.NewTicker(cfg.GetPublicRateWindow())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counter.Prune()
			}
		}
	}()
	return counter
}
