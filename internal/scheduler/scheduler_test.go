package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/config"
	"jobpulse/ingest-service/internal/pipeline"
)

// fakeRunner counts phase invocations and can block to simulate long runs.
type fakeRunner struct {
	mu          sync.Mutex
	pipelines   int
	maintenance int
	collections int
	block       chan struct{} // closed to release blocked runs
	err         error
}

func (f *fakeRunner) RunFullPipeline(ctx context.Context, _ pipeline.Params) (*pipeline.Result, error) {
	f.mu.Lock()
	f.pipelines++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &pipeline.Result{}, f.err
}

func (f *fakeRunner) RunMaintenance(context.Context) (*pipeline.MaintenanceReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maintenance++
	return &pipeline.MaintenanceReport{Health: pipeline.HealthHealthy}, f.err
}

func (f *fakeRunner) Collect(context.Context, string, string, int, int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections++
	return []string{"col-1"}, f.err
}

func testJobs() []config.JobDefinition {
	return []config.JobDefinition{
		{Name: "pipeline", Phase: "full_pipeline", Schedule: "0 2 * * *", Parameters: config.JobParameters{Query: "go"}},
		{Name: "collect", Phase: "collection", Schedule: "@hourly", Parameters: config.JobParameters{Query: "go"}},
		{Name: "maint", Phase: "maintenance", Schedule: "0 3 * * 0"},
	}
}

func TestNew_RejectsUnknownPhase(t *testing.T) {
	defs := []config.JobDefinition{{Name: "bad", Phase: "reticulate", Schedule: "@hourly"}}
	if _, err := New(zap.NewNop(), &fakeRunner{}, &fakeRunner{}, defs); err == nil {
		t.Fatal("expected an error for an unknown phase")
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	defs := []config.JobDefinition{{Name: "bad", Phase: "maintenance", Schedule: "not a cron spec"}}
	if _, err := New(zap.NewNop(), &fakeRunner{}, &fakeRunner{}, defs); err == nil {
		t.Fatal("expected an error for a bad schedule")
	}
}

func TestTrigger_RunsEachPhase(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(zap.NewNop(), runner, runner, testJobs())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, name := range []string{"pipeline", "collect", "maint"} {
		if err := s.Trigger(ctx, name); err != nil {
			t.Errorf("Trigger(%s): %v", name, err)
		}
	}
	if runner.pipelines != 1 || runner.collections != 1 || runner.maintenance != 1 {
		t.Errorf("calls = %d/%d/%d, want 1 each", runner.pipelines, runner.collections, runner.maintenance)
	}
}

func TestTrigger_UnknownJob(t *testing.T) {
	s, err := New(zap.NewNop(), &fakeRunner{}, &fakeRunner{}, testJobs())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("err = %v, want ErrUnknownJob", err)
	}
}

func TestTrigger_CoalescesOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, err := New(zap.NewNop(), runner, runner, testJobs())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "pipeline") }()

	// Wait for the first run to be inside the runner.
	deadline := time.After(2 * time.Second)
	for {
		runner.mu.Lock()
		started := runner.pipelines == 1
		runner.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := s.Trigger(context.Background(), "pipeline"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("overlapping trigger err = %v, want ErrAlreadyRunning", err)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Errorf("first run err = %v", err)
	}

	if runner.pipelines != 1 {
		t.Errorf("pipeline runs = %d, want the overlap coalesced away", runner.pipelines)
	}
}

func TestExecute_RetriesOnFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("flaky")}
	defs := []config.JobDefinition{
		{Name: "maint", Phase: "maintenance", Schedule: "0 3 * * 0", Retries: 2},
	}
	s, err := New(zap.NewNop(), runner, runner, defs)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(context.Background(), "maint"); err == nil {
		t.Fatal("expected the final attempt's error")
	}
	if runner.maintenance != 3 {
		t.Errorf("attempts = %d, want initial + 2 retries", runner.maintenance)
	}
}

func TestStatus(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(zap.NewNop(), runner, runner, testJobs())
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	if err := s.Trigger(context.Background(), "collect"); err != nil {
		t.Fatal(err)
	}

	statuses := s.Status()
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3 in registration order", len(statuses))
	}
	if statuses[0].Name != "pipeline" || statuses[1].Name != "collect" || statuses[2].Name != "maint" {
		t.Errorf("order = %s/%s/%s", statuses[0].Name, statuses[1].Name, statuses[2].Name)
	}

	collect := statuses[1]
	if collect.Runs != 1 || collect.Running {
		t.Errorf("collect = runs %d running %v, want one finished run", collect.Runs, collect.Running)
	}
	if collect.LastRun == nil {
		t.Error("collect should have a last-run timestamp")
	}
	if collect.NextRun == nil {
		t.Error("a started scheduler should report the next fire time")
	}
	if collect.LastError != "" {
		t.Errorf("LastError = %q, want empty", collect.LastError)
	}
}

func TestExecute_TimeoutCancelsRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})} // never released
	defs := []config.JobDefinition{
		{Name: "pipeline", Phase: "full_pipeline", Schedule: "0 2 * * *", Timeout: 10 * time.Millisecond},
	}
	s, err := New(zap.NewNop(), runner, runner, defs)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(context.Background(), "pipeline"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
