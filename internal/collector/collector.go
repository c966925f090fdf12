package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/ratelimit"
	"jobpulse/ingest-service/internal/store"
)

// Config tunes one Collector instance.
type Config struct {
	Provider   string
	Cooldown   time.Duration // fixed sleep before retrying a 429'd page
	RawDataDir string
}

// Collector runs the collection phase: one rate-limited request per page,
// each successful page persisted as a PENDING RawCollection. Page failures
// are isolated; only a batch-level error fails the run.
type Collector struct {
	log     *zap.Logger
	store   store.Store
	client  *Client
	limiter *ratelimit.Limiter
	cfg     Config

	now func() time.Time
}

// New constructs a Collector. The limiter is owned exclusively by this
// instance, never shared.
func New(log *zap.Logger, st store.Store, client *Client, limiter *ratelimit.Limiter, cfg Config) *Collector {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Collector{
		log:     log,
		store:   st,
		client:  client,
		limiter: limiter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// pageError records one page's failure without aborting the range.
type pageError struct {
	Page int    `json:"page"`
	Err  string `json:"error"`
}

// Collect fetches pages [startPage, startPage+numPages) in increasing order
// and returns the ids of the stored RawCollections. The whole run is
// wrapped in an OperationLog: COMPLETED when the full range was walked
// (isolated page errors end up in the output summary), FAILED only when the
// run itself is cut short.
func (c *Collector) Collect(ctx context.Context, query, location string, startPage, numPages int) ([]string, error) {
	opLog := &model.OperationLog{
		ID:            uuid.NewString(),
		OperationType: model.OperationCollection,
		Status:        model.StatusProcessing,
		InputSummary: map[string]any{
			"query":      query,
			"location":   location,
			"start_page": startPage,
			"num_pages":  numPages,
			"provider":   c.cfg.Provider,
		},
		StartedAt: c.now().UTC(),
	}
	if err := c.store.InsertOperationLog(ctx, opLog); err != nil {
		return nil, fmt.Errorf("start collection log: %w", err)
	}

	var (
		ids        []string
		totalJobs  int
		pageErrors []pageError
		runErr     error
	)

	for page := startPage; page < startPage+numPages; page++ {
		id, jobs, err := c.collectPage(ctx, query, location, page)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			c.log.Error("page collection failed",
				zap.Int("page", page),
				zap.String("query", query),
				zap.Error(err),
			)
			pageErrors = append(pageErrors, pageError{Page: page, Err: err.Error()})
			continue
		}
		ids = append(ids, id)
		totalJobs += jobs
	}

	now := c.now().UTC()
	status := model.StatusCompleted
	if runErr != nil {
		status = model.StatusFailed
		opLog.ErrorDetail = runErr.Error()
	}
	opLog.OutputSummary = map[string]any{
		"pages_collected": len(ids),
		"total_jobs":      totalJobs,
		"page_errors":     pageErrors,
		"collection_ids":  ids,
	}
	opLog.Metrics = runMetrics(len(ids), numPages, totalJobs, now.Sub(opLog.StartedAt))
	opLog.Finish(status, now)
	if err := c.store.CompleteOperationLog(ctx, opLog); err != nil {
		c.log.Error("failed to complete collection log", zap.String("log_id", opLog.ID), zap.Error(err))
	}

	if runErr != nil {
		return ids, runErr
	}
	return ids, nil
}

// collectPage fetches one page, retrying in place on 429 until the context
// gives up. Any other failure is returned to the caller for isolation.
func (c *Collector) collectPage(ctx context.Context, query, location string, page int) (string, int, error) {
	for {
		if err := c.limiter.AwaitSlot(ctx); err != nil {
			return "", 0, err
		}

		res, err := c.client.SearchPage(ctx, query, location, page)
		if errors.Is(err, ErrRateLimited) {
			c.limiter.MarkEnd(false)
			c.log.Warn("provider rate limit hit, cooling down",
				zap.Int("page", page),
				zap.Duration("cooldown", c.cfg.Cooldown),
			)
			if err := sleepCtx(ctx, c.cfg.Cooldown); err != nil {
				return "", 0, err
			}
			continue // same page again
		}
		if err != nil {
			c.limiter.MarkEnd(false)
			return "", 0, err
		}
		c.limiter.MarkEnd(true)

		col := &model.RawCollection{
			ID:          uuid.NewString(),
			Provider:    c.cfg.Provider,
			Query:       query,
			Location:    location,
			Page:        page,
			Payload:     res.Raw,
			JobCount:    len(res.Entries),
			ResponseMS:  res.Elapsed.Milliseconds(),
			StatusCode:  res.StatusCode,
			Status:      model.StatusPending,
			CollectedAt: c.now().UTC(),
		}
		if err := c.store.InsertRawCollection(ctx, col); err != nil {
			return "", 0, err
		}

		// Durability fallback only; never fails the page.
		if err := c.backup(col); err != nil {
			c.log.Warn("raw backup failed",
				zap.String("collection_id", col.ID),
				zap.Error(err),
			)
		}

		c.log.Info("page collected",
			zap.Int("page", page),
			zap.String("collection_id", col.ID),
			zap.Int("jobs", col.JobCount),
		)
		return col.ID, col.JobCount, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runMetrics(collected, requested, jobs int, elapsed time.Duration) map[string]any {
	m := map[string]any{
		"throughput_jobs_per_sec": 0.0,
		"page_success_rate":       0.0,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		m["throughput_jobs_per_sec"] = float64(jobs) / secs
	}
	if requested > 0 {
		m["page_success_rate"] = float64(collected) / float64(requested)
	}
	return m
}
