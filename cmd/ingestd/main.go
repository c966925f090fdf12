// ingestd — job-postings ingestion service
//
// Wires the full pipeline (collection, processing, loading), the cron
// scheduler and the ops HTTP server, then runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/api"
	"jobpulse/ingest-service/internal/collector"
	"jobpulse/ingest-service/internal/config"
	"jobpulse/ingest-service/internal/db"
	"jobpulse/ingest-service/internal/dedup"
	"jobpulse/ingest-service/internal/loader"
	"jobpulse/ingest-service/internal/logging"
	"jobpulse/ingest-service/internal/pipeline"
	"jobpulse/ingest-service/internal/processor"
	"jobpulse/ingest-service/internal/ratelimit"
	"jobpulse/ingest-service/internal/scheduler"
	"jobpulse/ingest-service/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "run against in-memory storage, no Postgres or Redis")
	flag.Parse()

	if err := run(*dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "ingestd: %v\n", err)
		os.Exit(1)
	}
}

func run(dryRun bool) error {
	if dryRun {
		// Storage URLs go unused in a dry run, but config validation
		// still insists on them.
		for key, v := range map[string]string{
			"DATABASE_URL": "postgres://dry-run",
			"REDIS_URL":    "redis://dry-run",
		} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, v)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Initialize(); err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		st   store.Store
		urls store.URLIndex
		emb  store.EmbeddingStore
	)
	if dryRun {
		log.Warn("dry run: using in-memory storage, nothing will persist")
		mem := store.NewMemory()
		st, urls, emb = mem, mem, mem
	} else {
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		st = pg

		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		idx := store.NewRedisIndex(rdb)
		urls, emb = idx, idx
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxCallsPerMinute:  cfg.MaxCallsPerMinute,
		MaxCallsPerHour:    cfg.MaxCallsPerHour,
		ConcurrentRequests: cfg.ConcurrentRequests,
		BackoffMultiplier:  cfg.BackoffMultiplier,
		MaxBackoffSeconds:  cfg.MaxBackoffSeconds,
	})
	client := collector.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.APIKeyHeader, cfg.APICountry)
	coll := collector.New(log.Named("collector"), st, client, limiter, collector.Config{
		Provider:   cfg.Provider,
		Cooldown:   cfg.RateLimitCooldown,
		RawDataDir: cfg.RawDataDir,
	})

	weights := processor.DefaultQualityWeights()
	weights.MinDescriptionLen = cfg.MinDescriptionLength
	proc := processor.New(log.Named("processor"), st, processor.Config{Weights: weights})

	detector := dedup.New(log.Named("dedup"), st, urls, dedup.Config{
		Threshold:      cfg.SimilarityThreshold,
		CandidateLimit: cfg.CandidateLimit,
	})
	load := loader.New(log.Named("loader"), st, detector, urls, emb)

	orch := pipeline.New(log.Named("pipeline"), st, coll, proc, load, pipeline.Config{
		MaxConcurrent: cfg.MaxConcurrentProcessing,
	})

	jobs, err := config.LoadJobs(cfg.JobsFile)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	sched, err := scheduler.New(log.Named("scheduler"), orch, coll, jobs)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := api.New(log.Named("api"), ":"+cfg.Port, orch, sched, cfg.Development)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	log.Info("ingestd up",
		zap.String("port", cfg.Port),
		zap.String("provider", cfg.Provider),
		zap.Int("jobs", len(jobs)),
		zap.Bool("dry_run", dryRun),
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops server shutdown", zap.Error(err))
	}
	return nil
}
