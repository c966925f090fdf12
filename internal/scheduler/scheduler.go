// Package scheduler runs the declarative job table on robfig/cron: each
// job triggers one pipeline phase on its own schedule. A job never runs
// twice at once; ticks that land while it is busy are skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/config"
	"jobpulse/ingest-service/internal/pipeline"
)

// Errors returned by Trigger.
var (
	ErrUnknownJob     = errors.New("scheduler: unknown job")
	ErrAlreadyRunning = errors.New("scheduler: job already running")
)

// PipelineRunner is the orchestrator surface the scheduler drives.
type PipelineRunner interface {
	RunFullPipeline(ctx context.Context, params pipeline.Params) (*pipeline.Result, error)
	RunMaintenance(ctx context.Context) (*pipeline.MaintenanceReport, error)
}

// Collector runs the collection-only phase.
type Collector interface {
	Collect(ctx context.Context, query, location string, startPage, numPages int) ([]string, error)
}

// JobStatus is one job's scheduling state, as reported by Status.
type JobStatus struct {
	Name      string     `json:"name"`
	Phase     string     `json:"phase"`
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	Skipped   int        `json:"skipped"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// job is the runtime state wrapped around one JobDefinition.
type job struct {
	def     config.JobDefinition
	entryID cron.EntryID

	mu        sync.Mutex
	running   bool
	runs      int
	skipped   int
	lastRun   time.Time
	lastError string
}

// Scheduler owns the cron instance and the job registry.
type Scheduler struct {
	log       *zap.Logger
	cron      *cron.Cron
	runner    PipelineRunner
	collector Collector

	jobs  map[string]*job
	order []string
}

// New registers every job definition with cron. Unknown phases are rejected
// up front rather than failing on the first tick.
func New(log *zap.Logger, runner PipelineRunner, collector Collector, defs []config.JobDefinition) (*Scheduler, error) {
	s := &Scheduler{
		log:       log,
		cron:      cron.New(),
		runner:    runner,
		collector: collector,
		jobs:      make(map[string]*job, len(defs)),
	}
	for _, def := range defs {
		switch def.Phase {
		case "full_pipeline", "collection", "maintenance":
		default:
			return nil, fmt.Errorf("job %q: unknown phase %q", def.Name, def.Phase)
		}
		j := &job{def: def}
		entryID, err := s.cron.AddFunc(def.Schedule, func() { s.tick(j) })
		if err != nil {
			return nil, fmt.Errorf("job %q: bad schedule %q: %w", def.Name, def.Schedule, err)
		}
		j.entryID = entryID
		s.jobs[def.Name] = j
		s.order = append(s.order, def.Name)
	}
	return s, nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts scheduling and waits for in-flight jobs registered with cron
// to drain.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Trigger runs a job by name immediately, outside its schedule, and blocks
// until it finishes. A job that is already running is not queued.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !j.tryAcquire() {
		return fmt.Errorf("%w: %q", ErrAlreadyRunning, name)
	}
	return s.execute(ctx, j)
}

// TriggerAsync starts a job by name and returns once the run slot is
// claimed; the run itself proceeds in the background. The ops endpoint
// uses this so a long pipeline run does not hold an HTTP request open.
func (s *Scheduler) TriggerAsync(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !j.tryAcquire() {
		return fmt.Errorf("%w: %q", ErrAlreadyRunning, name)
	}
	go func() {
		if err := s.execute(context.Background(), j); err != nil {
			s.log.Error("triggered job failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return nil
}

// Status reports every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		entry := s.cron.Entry(j.entryID)

		j.mu.Lock()
		st := JobStatus{
			Name:      j.def.Name,
			Phase:     j.def.Phase,
			Schedule:  j.def.Schedule,
			Running:   j.running,
			Runs:      j.runs,
			Skipped:   j.skipped,
			LastError: j.lastError,
		}
		if !j.lastRun.IsZero() {
			lr := j.lastRun
			st.LastRun = &lr
		}
		j.mu.Unlock()

		if !entry.Next.IsZero() {
			next := entry.Next
			st.NextRun = &next
		}
		out = append(out, st)
	}
	return out
}

// tick is the cron entry point: coalesce overlapping fires, then execute.
func (s *Scheduler) tick(j *job) {
	if !j.tryAcquire() {
		j.mu.Lock()
		j.skipped++
		j.mu.Unlock()
		s.log.Warn("job still running, tick skipped", zap.String("job", j.def.Name))
		return
	}
	if err := s.execute(context.Background(), j); err != nil {
		s.log.Error("scheduled job failed", zap.String("job", j.def.Name), zap.Error(err))
	}
}

// tryAcquire claims the job's single run slot.
func (j *job) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

// execute runs the job's phase with its timeout and retry budget. The
// caller must hold the run slot; execute releases it.
func (s *Scheduler) execute(ctx context.Context, j *job) error {
	started := time.Now().UTC()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.runs++
		j.lastRun = started
		j.mu.Unlock()
	}()

	if j.def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.def.Timeout)
		defer cancel()
	}

	s.log.Info("job run started", zap.String("job", j.def.Name), zap.String("phase", j.def.Phase))

	var err error
	for attempt := 0; ; attempt++ {
		err = s.runPhase(ctx, j.def)
		if err == nil || attempt >= j.def.Retries || ctx.Err() != nil {
			break
		}
		s.log.Warn("job attempt failed, retrying",
			zap.String("job", j.def.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	j.mu.Lock()
	if err != nil {
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.mu.Unlock()

	s.log.Info("job run finished",
		zap.String("job", j.def.Name),
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("ok", err == nil),
	)
	return err
}

func (s *Scheduler) runPhase(ctx context.Context, def config.JobDefinition) error {
	p := def.Parameters
	switch def.Phase {
	case "full_pipeline":
		_, err := s.runner.RunFullPipeline(ctx, pipeline.Params{
			Query:     p.Query,
			Location:  p.Location,
			StartPage: p.StartPage,
			NumPages:  p.NumPages,
		})
		return err
	case "collection":
		_, err := s.collector.Collect(ctx, p.Query, p.Location, p.StartPage, p.NumPages)
		return err
	case "maintenance":
		_, err := s.runner.RunMaintenance(ctx)
		return err
	default:
		return fmt.Errorf("unknown phase %q", def.Phase)
	}
}
