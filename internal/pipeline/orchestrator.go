// Package pipeline sequences the three ingestion phases and runs the
// periodic maintenance pass. Phases run strictly in order; only the
// processing phase fans out internally.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

// Collector is the collection phase as the orchestrator sees it.
type Collector interface {
	Collect(ctx context.Context, query, location string, startPage, numPages int) ([]string, error)
}

// Processor is the processing phase as the orchestrator sees it.
type Processor interface {
	Process(ctx context.Context, collectionID string) (string, error)
}

// Loader is the loading phase plus its maintenance sweep.
type Loader interface {
	LoadBatch(ctx context.Context, processingID string) (string, error)
	CleanupOldDuplicates(ctx context.Context, days int) (int64, error)
}

// Config tunes the orchestrator. Zero values fall back to the defaults.
type Config struct {
	// MaxConcurrent bounds the processing-phase fan-out.
	MaxConcurrent int
	// PendingLimit bounds how many pending collections one run picks up.
	PendingLimit int
	// CleanupDays is the age threshold of the duplication-link sweep.
	CleanupDays int
}

const (
	defaultMaxConcurrent = 3
	defaultPendingLimit  = 50
	defaultCleanupDays   = 30
)

// Params describe one collection run.
type Params struct {
	Query     string
	Location  string
	StartPage int
	NumPages  int
}

// PhaseResult is the outcome of a single phase.
type PhaseResult struct {
	Status       model.Status `json:"status"`
	OperationIDs []string     `json:"operation_ids"`
	Errors       []string     `json:"errors,omitempty"`
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Status      model.Status `json:"status"`
	Collection  PhaseResult  `json:"collection"`
	Processing  PhaseResult  `json:"processing"`
	Loading     PhaseResult  `json:"loading"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Orchestrator wires the phases together.
type Orchestrator struct {
	log       *zap.Logger
	store     store.Store
	collector Collector
	processor Processor
	loader    Loader
	cfg       Config

	now func() time.Time
}

// New constructs an Orchestrator with defaults filled in.
func New(log *zap.Logger, st store.Store, c Collector, p Processor, l Loader, cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = defaultPendingLimit
	}
	if cfg.CleanupDays <= 0 {
		cfg.CleanupDays = defaultCleanupDays
	}
	return &Orchestrator{
		log:       log,
		store:     st,
		collector: c,
		processor: p,
		loader:    l,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunFullPipeline runs collection, processing and loading in sequence.
//
// A collection failure aborts the run as FAILED: without fresh data the
// later phases have nothing trustworthy to chew on. Processing and loading
// trouble downgrades the run to PARTIAL but never blocks the next phase.
func (o *Orchestrator) RunFullPipeline(ctx context.Context, params Params) (*Result, error) {
	if params.StartPage <= 0 {
		params.StartPage = 1
	}
	if params.NumPages <= 0 {
		params.NumPages = 1
	}

	res := &Result{StartedAt: o.now().UTC()}
	o.log.Info("pipeline run started",
		zap.String("query", params.Query),
		zap.String("location", params.Location),
		zap.Int("pages", params.NumPages),
	)

	collected, err := o.collector.Collect(ctx, params.Query, params.Location, params.StartPage, params.NumPages)
	if err != nil {
		res.Collection = PhaseResult{Status: model.StatusFailed, Errors: []string{err.Error()}}
		res.Status = model.StatusFailed
		res.CompletedAt = o.now().UTC()
		o.log.Error("collection phase failed, pipeline aborted", zap.Error(err))
		return res, fmt.Errorf("collection phase: %w", err)
	}
	res.Collection = PhaseResult{Status: model.StatusCompleted, OperationIDs: collected}

	res.Processing = o.runProcessing(ctx)
	res.Loading = o.runLoading(ctx, res.Processing.OperationIDs)

	res.Status = aggregateStatus(res.Collection.Status, res.Processing.Status, res.Loading.Status)
	res.CompletedAt = o.now().UTC()
	o.log.Info("pipeline run finished",
		zap.String("status", string(res.Status)),
		zap.Int("collections", len(collected)),
		zap.Int("batches", len(res.Processing.OperationIDs)),
	)
	return res, nil
}

// runProcessing fans pending collections out under a semaphore. One
// collection's failure is tallied, never propagated to its siblings.
func (o *Orchestrator) runProcessing(ctx context.Context) PhaseResult {
	pending, err := o.store.ListPendingCollections(ctx, o.cfg.PendingLimit)
	if err != nil {
		return PhaseResult{Status: model.StatusFailed, Errors: []string{fmt.Sprintf("list pending collections: %v", err)}}
	}
	if len(pending) == 0 {
		return PhaseResult{Status: model.StatusCompleted}
	}

	var (
		mu      sync.Mutex
		ids     []string
		errs    []string
		demoted bool
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, o.cfg.MaxConcurrent)
	for _, col := range pending {
		col := col
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			processingID, err := o.processor.Process(ctx, col.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("collection %s: %v", col.ID, err))
				return
			}
			ids = append(ids, processingID)
			if o.logStatus(ctx, processingID) != model.StatusCompleted {
				demoted = true
			}
		}()
	}
	wg.Wait()
	sort.Strings(ids) // goroutine completion order is not meaningful

	return PhaseResult{
		Status:       phaseStatus(len(pending), len(errs), demoted),
		OperationIDs: ids,
		Errors:       errs,
	}
}

// runLoading resolves each processed batch in order.
func (o *Orchestrator) runLoading(ctx context.Context, processingIDs []string) PhaseResult {
	if len(processingIDs) == 0 {
		return PhaseResult{Status: model.StatusCompleted}
	}

	var (
		ids     []string
		errs    []string
		demoted bool
	)
	for _, pid := range processingIDs {
		loadID, err := o.loader.LoadBatch(ctx, pid)
		if err != nil {
			errs = append(errs, fmt.Sprintf("batch %s: %v", pid, err))
			continue
		}
		ids = append(ids, loadID)
		if o.logStatus(ctx, loadID) != model.StatusCompleted {
			demoted = true
		}
	}

	return PhaseResult{
		Status:       phaseStatus(len(processingIDs), len(errs), demoted),
		OperationIDs: ids,
		Errors:       errs,
	}
}

// logStatus reads back an operation's terminal status; unknown logs count
// as demotions rather than silently passing.
func (o *Orchestrator) logStatus(ctx context.Context, id string) model.Status {
	l, err := o.store.GetOperationLog(ctx, id)
	if err != nil {
		o.log.Warn("operation log unavailable", zap.String("log_id", id), zap.Error(err))
		return model.StatusFailed
	}
	return l.Status
}

// phaseStatus derives a phase's status from its item outcomes.
func phaseStatus(total, failed int, demoted bool) model.Status {
	switch {
	case total > 0 && failed == total:
		return model.StatusFailed
	case failed > 0 || demoted:
		return model.StatusPartial
	default:
		return model.StatusCompleted
	}
}

// aggregateStatus folds the three phase statuses into the run status.
// Collection gates data existence; everything after favors forward
// progress, so later trouble means PARTIAL, not FAILED.
func aggregateStatus(collection, processing, loading model.Status) model.Status {
	if collection == model.StatusFailed {
		return model.StatusFailed
	}
	for _, s := range []model.Status{collection, processing, loading} {
		if s != model.StatusCompleted {
			return model.StatusPartial
		}
	}
	return model.StatusCompleted
}
