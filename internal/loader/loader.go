// Package loader resolves normalized job records against the canonical
// job table: new postings become canonical rows, duplicates increment an
// existing row's sighting count and leave an audit link behind.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/dedup"
	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

// linkConfidence is recorded on every automatically resolved duplication
// link. Manual review can raise or lower trust later; automation never
// claims more than this.
const linkConfidence = 0.9

// staleLinkConfidenceCutoff bounds which unreviewed links the maintenance
// sweep may delete.
const staleLinkConfidenceCutoff = 0.7

// Loader applies duplicate resolution to a processed batch.
type Loader struct {
	log        *zap.Logger
	store      store.Store
	detector   *dedup.Detector
	urls       store.URLIndex       // optional
	embeddings store.EmbeddingStore // optional

	now func() time.Time
}

// New constructs a Loader. urls and embeddings may be nil when no index
// backend is wired (dry runs).
func New(log *zap.Logger, st store.Store, det *dedup.Detector, urls store.URLIndex, emb store.EmbeddingStore) *Loader {
	return &Loader{log: log, store: st, detector: det, urls: urls, embeddings: emb, now: time.Now}
}

// LoadBatch resolves every pending record of the processing batch and
// returns the id of the loading OperationLog. Record failures are isolated;
// the batch fails outright only when the pending set cannot be listed.
func (l *Loader) LoadBatch(ctx context.Context, processingID string) (string, error) {
	opLog := &model.OperationLog{
		ID:            uuid.NewString(),
		OperationType: model.OperationLoading,
		Status:        model.StatusProcessing,
		InputSummary:  map[string]any{"processing_id": processingID},
		StartedAt:     l.now().UTC(),
	}
	if err := l.store.InsertOperationLog(ctx, opLog); err != nil {
		return "", fmt.Errorf("start loading log: %w", err)
	}

	records, err := l.store.ListPendingNormalizedJobs(ctx, processingID)
	if err != nil {
		cause := fmt.Errorf("list pending records: %w", err)
		opLog.ErrorDetail = cause.Error()
		opLog.Finish(model.StatusFailed, l.now().UTC())
		if cerr := l.store.CompleteOperationLog(ctx, opLog); cerr != nil {
			l.log.Error("failed to complete loading log", zap.String("log_id", opLog.ID), zap.Error(cerr))
		}
		return opLog.ID, cause
	}

	var created, merged, failed int
	for i := range records {
		rec := &records[i]
		if err := l.loadRecord(ctx, rec); err != nil {
			failed++
			l.log.Warn("record load failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			if uerr := l.store.UpdateNormalizedJobLoad(ctx, rec.ID, model.StatusFailed, nil); uerr != nil {
				l.log.Error("failed to mark record FAILED", zap.String("record_id", rec.ID), zap.Error(uerr))
			}
			continue
		}
		if rec.DuplicateOf != nil {
			merged++
		} else {
			created++
		}
	}

	status := model.StatusCompleted
	if failed > 0 {
		status = model.StatusPartial
	}
	opLog.OutputSummary = map[string]any{
		"records_total":     len(records),
		"canonical_created": created,
		"duplicates_merged": merged,
		"records_failed":    failed,
	}
	opLog.Metrics = map[string]any{
		"duplicate_rate": rate(merged, len(records)),
	}
	opLog.Finish(status, l.now().UTC())
	if err := l.store.CompleteOperationLog(ctx, opLog); err != nil {
		l.log.Error("failed to complete loading log", zap.String("log_id", opLog.ID), zap.Error(err))
	}
	return opLog.ID, nil
}

// loadRecord resolves one record. On success rec.DuplicateOf reflects the
// outcome: nil for a new canonical, the canonical id for a merged duplicate.
func (l *Loader) loadRecord(ctx context.Context, rec *model.NormalizedJobRecord) error {
	match, err := l.detector.FindDuplicate(ctx, rec)
	if err != nil {
		return fmt.Errorf("duplicate detection: %w", err)
	}

	if match == nil {
		return l.createCanonical(ctx, rec)
	}
	return l.mergeDuplicate(ctx, rec, match)
}

func (l *Loader) createCanonical(ctx context.Context, rec *model.NormalizedJobRecord) error {
	now := l.now().UTC()
	can := &model.CanonicalJobRecord{
		ID:               uuid.NewString(),
		Title:            rec.Title,
		Company:          rec.Company,
		Location:         rec.Location,
		Description:      rec.Description,
		Requirements:     rec.Requirements,
		Responsibilities: rec.Responsibilities,
		JobType:          rec.JobType,
		RemoteType:       rec.RemoteType,
		ExperienceLevel:  rec.ExperienceLevel,
		SalaryMin:        rec.SalaryMin,
		SalaryMax:        rec.SalaryMax,
		SalaryCurrency:   rec.SalaryCurrency,
		Skills:           rec.Skills,
		TechStack:        rec.TechStack,
		ApplicationURL:   rec.ApplicationURL,
		SourceCount:      1,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.store.InsertCanonicalJob(ctx, can); err != nil {
		return fmt.Errorf("insert canonical: %w", err)
	}

	if l.urls != nil && can.ApplicationURL != "" {
		if err := l.urls.AddURL(ctx, can.ApplicationURL, can.ID); err != nil {
			// The SQL row is authoritative; a cold index only costs a
			// slower lookup next time.
			l.log.Warn("url index update failed", zap.String("canonical_id", can.ID), zap.Error(err))
		}
	}
	if l.embeddings != nil && len(rec.Embedding) > 0 {
		if err := l.embeddings.PutEmbedding(ctx, ContentHash(rec.Title, rec.Description), rec.Embedding); err != nil {
			l.log.Warn("embedding store update failed", zap.String("canonical_id", can.ID), zap.Error(err))
		}
	}

	rec.DuplicateOf = nil
	if err := l.store.UpdateNormalizedJobLoad(ctx, rec.ID, model.StatusCompleted, nil); err != nil {
		return fmt.Errorf("mark record loaded: %w", err)
	}
	return nil
}

func (l *Loader) mergeDuplicate(ctx context.Context, rec *model.NormalizedJobRecord, match *dedup.Match) error {
	link := &model.DuplicationLink{
		ID:             uuid.NewString(),
		CanonicalID:    match.CanonicalID,
		DuplicateID:    rec.ID,
		Confidence:     linkConfidence,
		MatchingFields: match.MatchingFields,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.store.MergeDuplicate(ctx, link); err != nil {
		return fmt.Errorf("merge duplicate: %w", err)
	}

	canonicalID := match.CanonicalID
	rec.DuplicateOf = &canonicalID
	return nil
}

// CleanupOldDuplicates deletes unreviewed low-confidence links older than
// the given number of days and returns how many rows went away. Runs from
// maintenance, never from the hot load path.
func (l *Loader) CleanupOldDuplicates(ctx context.Context, days int) (int64, error) {
	cutoff := l.now().UTC().AddDate(0, 0, -days)
	deleted, err := l.store.DeleteStaleDuplicationLinks(ctx, cutoff, staleLinkConfidenceCutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale links: %w", err)
	}
	if deleted > 0 {
		l.log.Info("stale duplication links removed", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// ContentHash keys embedding vectors by the text they were computed from.
func ContentHash(title, description string) string {
	sum := sha256.Sum256([]byte(title + "\n" + description))
	return hex.EncodeToString(sum[:])
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
