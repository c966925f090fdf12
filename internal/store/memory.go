package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"jobpulse/ingest-service/internal/model"
)

// Memory is an in-process Store, URLIndex and EmbeddingStore. It backs the
// package tests and the --dry-run mode of ingestd; the map access is
// mutex-guarded so concurrent pipeline phases can share one instance.
type Memory struct {
	mu sync.Mutex

	collections    map[string]*model.RawCollection
	collectionIDs  []string
	normalized     map[string]*model.NormalizedJobRecord
	normalizedIDs  []string
	canonical      map[string]*model.CanonicalJobRecord
	canonicalIDs   []string
	links          map[string]*model.DuplicationLink
	linkIDs        []string
	operations     map[string]*model.OperationLog
	operationIDs   []string
	urlToCanonical map[string]string
	embeddings     map[string][]float32
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections:    make(map[string]*model.RawCollection),
		normalized:     make(map[string]*model.NormalizedJobRecord),
		canonical:      make(map[string]*model.CanonicalJobRecord),
		links:          make(map[string]*model.DuplicationLink),
		operations:     make(map[string]*model.OperationLog),
		urlToCanonical: make(map[string]string),
		embeddings:     make(map[string][]float32),
	}
}

// ── Raw collections ────────────────────────────────────────────────────────

func (m *Memory) InsertRawCollection(_ context.Context, c *model.RawCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.collections[c.ID] = &cp
	m.collectionIDs = append(m.collectionIDs, c.ID)
	return nil
}

func (m *Memory) GetRawCollection(_ context.Context, id string) (*model.RawCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) UpdateRawCollectionStatus(_ context.Context, id string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *Memory) ListPendingCollections(_ context.Context, limit int) ([]model.RawCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RawCollection
	for _, id := range m.collectionIDs {
		if len(out) >= limit {
			break
		}
		if c := m.collections[id]; c.Status == model.StatusPending {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *Memory) LatestCollectionTime(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, c := range m.collections {
		if c.CollectedAt.After(latest) {
			latest = c.CollectedAt
		}
	}
	if latest.IsZero() {
		return time.Time{}, ErrNotFound
	}
	return latest, nil
}

// ── Normalized job records ─────────────────────────────────────────────────

func (m *Memory) InsertNormalizedJob(_ context.Context, r *model.NormalizedJobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.normalized[r.ID] = &cp
	m.normalizedIDs = append(m.normalizedIDs, r.ID)
	return nil
}

func (m *Memory) ListPendingNormalizedJobs(_ context.Context, processingID string) ([]model.NormalizedJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.NormalizedJobRecord
	for _, id := range m.normalizedIDs {
		r := m.normalized[id]
		if r.ProcessingID == processingID && r.LoadStatus == model.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *Memory) UpdateNormalizedJobLoad(_ context.Context, id string, status model.Status, duplicateOf *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.normalized[id]
	if !ok {
		return ErrNotFound
	}
	r.LoadStatus = status
	r.DuplicateOf = duplicateOf
	return nil
}

// ── Canonical job records ──────────────────────────────────────────────────

func (m *Memory) InsertCanonicalJob(_ context.Context, c *model.CanonicalJobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.canonical[c.ID] = &cp
	m.canonicalIDs = append(m.canonicalIDs, c.ID)
	return nil
}

func (m *Memory) FindCanonicalByURL(_ context.Context, url string) (*model.CanonicalJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.canonicalIDs {
		c := m.canonical[id]
		if c.Active && c.ApplicationURL != "" && c.ApplicationURL == url {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SearchCanonicalCandidates(_ context.Context, title, company string, limit int) ([]model.CanonicalJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	title = strings.ToLower(title)
	company = strings.ToLower(company)
	var out []model.CanonicalJobRecord
	for _, id := range m.canonicalIDs {
		if len(out) >= limit {
			break
		}
		c := m.canonical[id]
		if !c.Active {
			continue
		}
		ct := strings.ToLower(c.Title)
		cc := strings.ToLower(c.Company)
		if substringEither(ct, title) && substringEither(cc, company) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func substringEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ── Duplication links ──────────────────────────────────────────────────────

func (m *Memory) InsertDuplicationLink(_ context.Context, l *model.DuplicationLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.links[l.ID] = &cp
	m.linkIDs = append(m.linkIDs, l.ID)
	return nil
}

func (m *Memory) MergeDuplicate(_ context.Context, l *model.DuplicationLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before mutating anything, so a failed merge
	// leaves no partial state behind.
	c, ok := m.canonical[l.CanonicalID]
	if !ok {
		return ErrNotFound
	}
	r, ok := m.normalized[l.DuplicateID]
	if !ok {
		return ErrNotFound
	}

	c.SourceCount++
	c.UpdatedAt = time.Now().UTC()

	cp := *l
	m.links[l.ID] = &cp
	m.linkIDs = append(m.linkIDs, l.ID)

	canonicalID := l.CanonicalID
	r.LoadStatus = model.StatusCompleted
	r.DuplicateOf = &canonicalID
	return nil
}

func (m *Memory) DeleteStaleDuplicationLinks(_ context.Context, olderThan time.Time, maxConfidence float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	kept := m.linkIDs[:0]
	for _, id := range m.linkIDs {
		l := m.links[id]
		if !l.Reviewed && l.CreatedAt.Before(olderThan) && l.Confidence < maxConfidence {
			delete(m.links, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	m.linkIDs = kept
	return deleted, nil
}

// ── Operation logs ─────────────────────────────────────────────────────────

func (m *Memory) InsertOperationLog(_ context.Context, l *model.OperationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.operations[l.ID] = &cp
	m.operationIDs = append(m.operationIDs, l.ID)
	return nil
}

func (m *Memory) CompleteOperationLog(_ context.Context, l *model.OperationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.operations[l.ID]; !ok {
		return ErrNotFound
	}
	cp := *l
	m.operations[l.ID] = &cp
	return nil
}

func (m *Memory) GetOperationLog(_ context.Context, id string) (*model.OperationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.operations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *Memory) RecentOperationStats(_ context.Context, since time.Time) (OperationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s OperationStats
	for _, l := range m.operations {
		if l.StartedAt.Before(since) || l.CompletedAt == nil {
			continue
		}
		s.Total++
		switch l.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusPartial:
			s.Partial++
		case model.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

// ── URL index / embedding store ────────────────────────────────────────────

func (m *Memory) LookupURL(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.urlToCanonical[url]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) AddURL(_ context.Context, url, canonicalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urlToCanonical[url] = canonicalID
	return nil
}

func (m *Memory) PutEmbedding(_ context.Context, contentHash string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[contentHash] = append([]float32(nil), vector...)
	return nil
}

// ── Test helpers ───────────────────────────────────────────────────────────

// CanonicalJobs returns a snapshot of all canonical rows in insertion order.
func (m *Memory) CanonicalJobs() []model.CanonicalJobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CanonicalJobRecord, 0, len(m.canonicalIDs))
	for _, id := range m.canonicalIDs {
		out = append(out, *m.canonical[id])
	}
	return out
}

// DuplicationLinks returns a snapshot of all link rows in insertion order.
func (m *Memory) DuplicationLinks() []model.DuplicationLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DuplicationLink, 0, len(m.linkIDs))
	for _, id := range m.linkIDs {
		out = append(out, *m.links[id])
	}
	return out
}

// NormalizedJobs returns a snapshot of all normalized rows in insertion order.
func (m *Memory) NormalizedJobs() []model.NormalizedJobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NormalizedJobRecord, 0, len(m.normalizedIDs))
	for _, id := range m.normalizedIDs {
		out = append(out, *m.normalized[id])
	}
	return out
}

// OperationLogs returns a snapshot of all operation logs in insertion order.
func (m *Memory) OperationLogs() []model.OperationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.OperationLog, 0, len(m.operationIDs))
	for _, id := range m.operationIDs {
		out = append(out, *m.operations[id])
	}
	return out
}

// Embeddings returns a snapshot of the embedding map.
func (m *Memory) Embeddings() map[string][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]float32, len(m.embeddings))
	for k, v := range m.embeddings {
		out[k] = v
	}
	return out
}
