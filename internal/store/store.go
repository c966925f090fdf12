// Package store persists pipeline entities. Every method is one short-lived
// unit of work: a single statement (or small transaction) committed before
// returning, never spanning multiple entries or phases.
package store

import (
	"context"
	"errors"
	"time"

	"jobpulse/ingest-service/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// OperationStats summarizes recent OperationLog rows for health checks.
type OperationStats struct {
	Total     int
	Completed int
	Partial   int
	Failed    int
}

// FailureRate is failed operations over all terminal operations, in [0,1].
func (s OperationStats) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Store is the storage handle injected into every pipeline component.
type Store interface {
	// Raw collections
	InsertRawCollection(ctx context.Context, c *model.RawCollection) error
	GetRawCollection(ctx context.Context, id string) (*model.RawCollection, error)
	UpdateRawCollectionStatus(ctx context.Context, id string, status model.Status) error
	ListPendingCollections(ctx context.Context, limit int) ([]model.RawCollection, error)
	LatestCollectionTime(ctx context.Context) (time.Time, error)

	// Normalized job records
	InsertNormalizedJob(ctx context.Context, r *model.NormalizedJobRecord) error
	ListPendingNormalizedJobs(ctx context.Context, processingID string) ([]model.NormalizedJobRecord, error)
	UpdateNormalizedJobLoad(ctx context.Context, id string, status model.Status, duplicateOf *string) error

	// Canonical job records
	InsertCanonicalJob(ctx context.Context, c *model.CanonicalJobRecord) error
	FindCanonicalByURL(ctx context.Context, url string) (*model.CanonicalJobRecord, error)
	SearchCanonicalCandidates(ctx context.Context, title, company string, limit int) ([]model.CanonicalJobRecord, error)

	// Duplication links
	InsertDuplicationLink(ctx context.Context, l *model.DuplicationLink) error
	// MergeDuplicate resolves one record as a duplicate in a single unit of
	// work: increments the canonical's source count, inserts the link, and
	// marks the duplicate record loaded. All three commit or none do.
	MergeDuplicate(ctx context.Context, l *model.DuplicationLink) error
	DeleteStaleDuplicationLinks(ctx context.Context, olderThan time.Time, maxConfidence float64) (int64, error)

	// Operation logs
	InsertOperationLog(ctx context.Context, l *model.OperationLog) error
	CompleteOperationLog(ctx context.Context, l *model.OperationLog) error
	GetOperationLog(ctx context.Context, id string) (*model.OperationLog, error)
	RecentOperationStats(ctx context.Context, since time.Time) (OperationStats, error)
}

// URLIndex is the fast exact-match lookup consulted before any SQL query
// during duplicate detection.
type URLIndex interface {
	LookupURL(ctx context.Context, url string) (string, error) // canonical id, ErrNotFound on miss
	AddURL(ctx context.Context, url, canonicalID string) error
}

// EmbeddingStore holds embedding vectors keyed by content hash for the
// downstream semantic-search consumer.
type EmbeddingStore interface {
	PutEmbedding(ctx context.Context, contentHash string, vector []float32) error
}
