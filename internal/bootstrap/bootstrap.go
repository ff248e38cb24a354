// Package bootstrap wires the modules shared by the api, scheduler and
// registry-sync binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"govcon_outreach_backend/internal/adapters/storage"
	"govcon_outreach_backend/internal/contractors"
	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/opportunities"
	oppservice "govcon_outreach_backend/internal/opportunities/service"
	"govcon_outreach_backend/internal/pipeline"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	syncWorkers    = 4
	opportunityTTL = 5 * time.Minute
	cacheKeyPrefix = "govcon:opps:"
	lockKeyPrefix  = "govcon:lock:"
)

// Core holds the modules every binary needs.
type Core struct {
	Registry        *registry.Client
	Contractors     *contractors.Module
	Opportunities   *opportunities.Module
	Pipeline        *pipeline.Module
	SyncStore       *syncjob.RunRepo
	ContractorSync  *syncjob.Runner
	OpportunitySync *syncjob.Runner
}

// NewCore builds the registry client, the stores and both sync runners.
// rdb may be nil, in which case caches and locks are process-local.
func NewCore(cfg *config.Config, pool *pgxpool.Pool, rdb redis.UniversalClient, archive storage.Archive, bus events.Bus, val *validator.Validator, log *logger.Logger) *Core {
	var cache oppservice.ListCache
	var locker syncjob.Locker
	if rdb != nil {
		cache = oppservice.NewRedisListCache(rdb, cacheKeyPrefix, opportunityTTL)
		locker = syncjob.NewRedisLocker(rdb, lockKeyPrefix)
	} else {
		cache = oppservice.NewMemoryListCache(opportunityTTL)
		locker = syncjob.NewLocalLocker()
	}

	client := registry.New(cfg, log)
	contractorsModule := contractors.NewModule(pool, val, log)
	opportunitiesModule := opportunities.NewModule(pool, cache, val, log)
	store := syncjob.NewRunRepo(pool)

	defaults := syncjob.Defaults{
		Codes:      cfg.GetTargeting().Codes,
		Window:     cfg.GetContractorSyncWindow(),
		MaxRecords: cfg.GetSyncMaxRecords(),
	}

	return &Core{
		Registry:      client,
		Contractors:   contractorsModule,
		Opportunities: opportunitiesModule,
		Pipeline:      pipeline.NewModule(pool, bus, cfg, log),
		SyncStore:     store,
		ContractorSync: syncjob.NewRunner(
			contractorsModule.SyncStrategy(client, opportunitiesModule.Service(), syncWorkers, log),
			store, locker, archive, bus, defaults, log),
		OpportunitySync: syncjob.NewRunner(
			opportunitiesModule.RefreshStrategy(client, syncWorkers, log),
			store, locker, archive, bus, defaults, log),
	}
}

// OpenRedis connects to REDIS_URL. It returns nil, nil when Redis is not
// configured.
func OpenRedis(ctx context.Context, cfg config.SchedulerConfig) (redis.UniversalClient, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
