package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/ratelimit"
	"jobpulse/ingest-service/internal/store"
)

// providerStub serves a JSearch-shaped search endpoint whose behaviour is
// scripted per page.
type providerStub struct {
	mu       sync.Mutex
	statuses map[int][]int // page → sequence of status codes to serve
	hits     map[int]int
}

func newProviderStub() *providerStub {
	return &providerStub{statuses: map[int][]int{}, hits: map[int]int{}}
}

func (p *providerStub) script(page int, codes ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[page] = codes
}

func (p *providerStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-RapidAPI-Key"); got != "test-key" {
			t.Errorf("missing API key header, got %q", got)
		}
		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)

		p.mu.Lock()
		p.hits[page]++
		code := http.StatusOK
		if seq := p.statuses[page]; len(seq) > 0 {
			code, p.statuses[page] = seq[0], seq[1:]
		}
		p.mu.Unlock()

		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []model.RawJobEntry{{
				JobID:        fmt.Sprintf("job-%d", page),
				Title:        "Backend Engineer",
				EmployerName: "Acme",
			}},
		})
	}
}

func newTestCollector(t *testing.T, baseURL string) (*Collector, *store.Memory, string) {
	t.Helper()
	mem := store.NewMemory()
	rawDir := t.TempDir()
	// Generous windows plus an instant sleeper: backoff penalties after
	// scripted 429s must not slow the test down.
	limiter := ratelimit.NewWithClock(ratelimit.Config{
		MaxCallsPerMinute:  1000,
		MaxCallsPerHour:    10000,
		ConcurrentRequests: 5,
	}, nil, func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	client := NewClient(baseURL, "test-key", "X-RapidAPI-Key", "us")
	c := New(zap.NewNop(), mem, client, limiter, Config{
		Provider:   "jsearch",
		Cooldown:   time.Millisecond,
		RawDataDir: rawDir,
	})
	return c, mem, rawDir
}

// ── Happy path ─────────────────────────────────────────────────────────────

func TestCollect_StoresPendingCollections(t *testing.T) {
	stub := newProviderStub()
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c, mem, _ := newTestCollector(t, srv.URL)
	ids, err := c.Collect(context.Background(), "golang developer", "Berlin", 1, 3)
	if err != nil {
		t.Fatalf("Collect() unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("collection ids = %d, want 3", len(ids))
	}

	for _, id := range ids {
		col, err := mem.GetRawCollection(context.Background(), id)
		if err != nil {
			t.Fatalf("stored collection %s missing: %v", id, err)
		}
		if col.Status != model.StatusPending {
			t.Errorf("collection %s status = %s, want PENDING", id, col.Status)
		}
		if col.JobCount != 1 {
			t.Errorf("collection %s job count = %d, want 1", id, col.JobCount)
		}
	}

	logs := mem.OperationLogs()
	if len(logs) != 1 {
		t.Fatalf("operation logs = %d, want 1", len(logs))
	}
	if logs[0].Status != model.StatusCompleted {
		t.Errorf("operation log status = %s, want COMPLETED", logs[0].Status)
	}
	if logs[0].OperationType != model.OperationCollection {
		t.Errorf("operation type = %s, want collection", logs[0].OperationType)
	}
}

// ── 429 handling: retry the same page, never skip ahead ────────────────────

func TestCollect_RateLimitedPageIsRetriedInPlace(t *testing.T) {
	stub := newProviderStub()
	stub.script(3, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK)
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c, mem, _ := newTestCollector(t, srv.URL)
	ids, err := c.Collect(context.Background(), "golang developer", "", 1, 5)
	if err != nil {
		t.Fatalf("Collect() unexpected error: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("collection ids = %d, want 5 despite the 429s", len(ids))
	}

	if hits := stub.hits[3]; hits != 3 {
		t.Errorf("page 3 hit %d times, want 3 (two 429s then success)", hits)
	}
	// Pages remain in increasing order: page 4 only fetched after page 3 landed.
	pages := make([]int, 0, len(ids))
	for _, id := range ids {
		col, _ := mem.GetRawCollection(context.Background(), id)
		pages = append(pages, col.Page)
	}
	for i, p := range pages {
		if p != i+1 {
			t.Fatalf("collected pages = %v, want [1 2 3 4 5]", pages)
		}
	}

	logs := mem.OperationLogs()
	if logs[0].Status != model.StatusCompleted {
		t.Errorf("operation log status = %s, want COMPLETED", logs[0].Status)
	}
}

// ── Page failures are isolated ─────────────────────────────────────────────

func TestCollect_PageFailureDoesNotAbortRange(t *testing.T) {
	stub := newProviderStub()
	stub.script(2, http.StatusInternalServerError)
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c, mem, _ := newTestCollector(t, srv.URL)
	ids, err := c.Collect(context.Background(), "golang developer", "", 1, 4)
	if err != nil {
		t.Fatalf("Collect() unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("collection ids = %d, want 3 (page 2 failed)", len(ids))
	}

	logs := mem.OperationLogs()
	if logs[0].Status != model.StatusCompleted {
		t.Errorf("operation log status = %s, want COMPLETED (page errors folded into summary)", logs[0].Status)
	}
	pe, ok := logs[0].OutputSummary["page_errors"].([]pageError)
	if !ok || len(pe) != 1 || pe[0].Page != 2 {
		t.Errorf("page_errors = %v, want one entry for page 2", logs[0].OutputSummary["page_errors"])
	}
}

// ── Raw backup ─────────────────────────────────────────────────────────────

func TestCollect_WritesDatedBackupFiles(t *testing.T) {
	stub := newProviderStub()
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c, _, rawDir := newTestCollector(t, srv.URL)
	ids, err := c.Collect(context.Background(), "golang developer", "", 1, 1)
	if err != nil {
		t.Fatalf("Collect() unexpected error: %v", err)
	}

	day := time.Now().UTC()
	path := filepath.Join(rawDir,
		day.Format("2006"), day.Format("01"), day.Format("02"),
		fmt.Sprintf("jsearch_%s.json", ids[0]))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("backup file missing at %s: %v", path, err)
	}

	var bf backupFile
	if err := json.Unmarshal(data, &bf); err != nil {
		t.Fatalf("backup file is not valid JSON: %v", err)
	}
	if bf.CollectionID != ids[0] || bf.Provider != "jsearch" {
		t.Errorf("backup metadata = %+v, want collection %s from jsearch", bf, ids[0])
	}
	if len(bf.Payload) == 0 {
		t.Error("backup payload is empty")
	}
}

// ── Cancellation fails the batch ───────────────────────────────────────────

func TestCollect_CancelledContextFailsRun(t *testing.T) {
	stub := newProviderStub()
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c, mem, _ := newTestCollector(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collect(ctx, "golang developer", "", 1, 3)
	if err == nil {
		t.Fatal("Collect() with cancelled context expected error, got nil")
	}
	logs := mem.OperationLogs()
	if len(logs) != 1 || logs[0].Status != model.StatusFailed {
		t.Errorf("operation log should be FAILED after cancellation, got %+v", logs)
	}
}
