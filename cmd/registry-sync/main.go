package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"govcon_outreach_backend/internal/adapters/storage"
	"govcon_outreach_backend/internal/bootstrap"
	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/db"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/validator"

	"github.com/jessevdk/go-flags"
)

const dateLayout = "2006-01-02"

type options struct {
	Kind  string   `long:"kind" default:"contractors" choice:"contractors" choice:"opportunities" description:"What to sync"`
	From  string   `long:"from" description:"Window start (YYYY-MM-DD); defaults to the configured sync window"`
	To    string   `long:"to" description:"Window end (YYYY-MM-DD); defaults to today"`
	Max   int      `long:"max" description:"Stop after this many records (0 uses the configured cap)"`
	Codes []string `long:"code" env:"SYNC_CODES" env-delim:"," description:"NAICS code to sync; repeatable, defaults to the targeting list"`
	Check bool     `long:"check" description:"Only verify that the registry accepts the configured API key"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	req, err := opts.request(time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting registry sync", "kind", req.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg, db.AppRegistrySync)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	archive, err := storage.NewArchive(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize sync archive", "error", err)
		panic("failed to initialize sync archive: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	core := bootstrap.NewCore(cfg, pool, rdb, archive, eventBus, validator.New(), log)

	if opts.Check {
		if err := core.Registry.Ping(ctx); err != nil {
			log.Error("registry check failed", "error", err)
			os.Exit(1)
		}
		log.Info("registry check passed")
		return
	}

	runner := core.ContractorSync
	if req.Kind == syncjob.KindOpportunities {
		runner = core.OpportunitySync
	}

	summary, runErr := runner.Run(ctx, req)
	eventBus.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Error("failed to write summary", "error", err)
	}

	if runErr != nil {
		log.Error("registry sync failed", "kind", req.Kind, "error", runErr)
		os.Exit(1)
	}
}

func (o options) request(now time.Time) (syncjob.Request, error) {
	req := syncjob.Request{Kind: syncjob.Kind(o.Kind), MaxRecords: o.Max}
	if !req.Kind.Valid() {
		return req, fmt.Errorf("unknown kind %q", o.Kind)
	}
	if o.Max < 0 {
		return req, errors.New("--max must not be negative")
	}

	if o.From != "" {
		from, err := time.Parse(dateLayout, o.From)
		if err != nil {
			return req, fmt.Errorf("invalid --from: %w", err)
		}
		req.From = &from
	}
	if o.To != "" {
		to, err := time.Parse(dateLayout, o.To)
		if err != nil {
			return req, fmt.Errorf("invalid --to: %w", err)
		}
		req.To = &to
	}
	if req.From != nil && req.To == nil {
		req.To = &now
	}
	if req.From != nil && req.To.Before(*req.From) {
		return req, errors.New("--to must not be before --from")
	}

	seen := make(map[string]struct{}, len(o.Codes))
	for _, code := range o.Codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		req.Codes = append(req.Codes, code)
	}
	return req, nil
}
