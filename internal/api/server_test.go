package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/pipeline"
	"jobpulse/ingest-service/internal/scheduler"
)

type fakeHealth struct {
	report *pipeline.MaintenanceReport
	err    error
}

func (f *fakeHealth) CheckHealth(context.Context) (*pipeline.MaintenanceReport, error) {
	return f.report, f.err
}

type fakeJobs struct {
	statuses   []scheduler.JobStatus
	triggerErr error
	triggered  []string
}

func (f *fakeJobs) Status() []scheduler.JobStatus { return f.statuses }

func (f *fakeJobs) TriggerAsync(name string) error {
	f.triggered = append(f.triggered, name)
	return f.triggerErr
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	cases := []struct {
		name     string
		health   pipeline.Health
		wantCode int
	}{
		{"healthy", pipeline.HealthHealthy, http.StatusOK},
		{"warning still serves", pipeline.HealthWarning, http.StatusOK},
		{"unhealthy trips probes", pipeline.HealthUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(zap.NewNop(), ":0", &fakeHealth{report: &pipeline.MaintenanceReport{Health: tc.health}}, &fakeJobs{}, false)
			rr := doRequest(t, s, http.MethodGet, "/health")
			if rr.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tc.wantCode)
			}
			var body pipeline.MaintenanceReport
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if body.Health != tc.health {
				t.Errorf("body health = %s, want %s", body.Health, tc.health)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	jobs := &fakeJobs{statuses: []scheduler.JobStatus{{Name: "daily-full-run", Phase: "full_pipeline"}}}
	s := New(zap.NewNop(), ":0", &fakeHealth{report: &pipeline.MaintenanceReport{}}, jobs, false)

	rr := doRequest(t, s, http.MethodGet, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].Name != "daily-full-run" {
		t.Errorf("jobs = %+v", body.Jobs)
	}
}

func TestHandleTrigger(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"unknown job", scheduler.ErrUnknownJob, http.StatusNotFound},
		{"already running", scheduler.ErrAlreadyRunning, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &fakeJobs{triggerErr: tc.err}
			s := New(zap.NewNop(), ":0", &fakeHealth{report: &pipeline.MaintenanceReport{}}, jobs, false)
			rr := doRequest(t, s, http.MethodPost, "/trigger/daily-full-run")
			if rr.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tc.wantCode)
			}
			if len(jobs.triggered) != 1 || jobs.triggered[0] != "daily-full-run" {
				t.Errorf("triggered = %v", jobs.triggered)
			}
		})
	}
}
