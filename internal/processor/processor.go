package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

// Config tunes the Processor. DefaultExperienceLevel is the fallback when
// no heuristic matches; MID_LEVEL is convention, not inference.
type Config struct {
	DefaultExperienceLevel model.ExperienceLevel
	Weights                QualityWeights
}

// Processor transforms one RawCollection's entries into normalized records.
// Entry failures are isolated; only an unreadable batch fails the run.
type Processor struct {
	log   *zap.Logger
	store store.Store
	cfg   Config

	now func() time.Time
}

// New constructs a Processor with defaults filled in.
func New(log *zap.Logger, st store.Store, cfg Config) *Processor {
	if cfg.DefaultExperienceLevel == "" {
		cfg.DefaultExperienceLevel = model.ExperienceMid
	}
	if cfg.Weights == (QualityWeights{}) {
		cfg.Weights = DefaultQualityWeights()
	}
	return &Processor{log: log, store: st, cfg: cfg, now: time.Now}
}

// entryFailure captures one skipped entry with its raw payload for diagnosis.
type entryFailure struct {
	Index int             `json:"index"`
	Error string          `json:"error"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Process normalizes every entry of the collection and returns the id of
// the processing OperationLog, which doubles as the batch's processing_id.
// Batch status: COMPLETED with zero entry failures, PARTIAL with some,
// FAILED only when the collection itself cannot be read.
func (p *Processor) Process(ctx context.Context, collectionID string) (string, error) {
	opLog := &model.OperationLog{
		ID:            uuid.NewString(),
		OperationType: model.OperationProcessing,
		Status:        model.StatusProcessing,
		InputSummary:  map[string]any{"collection_id": collectionID},
		StartedAt:     p.now().UTC(),
	}
	if err := p.store.InsertOperationLog(ctx, opLog); err != nil {
		return "", fmt.Errorf("start processing log: %w", err)
	}

	col, err := p.store.GetRawCollection(ctx, collectionID)
	if err != nil {
		return opLog.ID, p.failBatch(ctx, opLog, collectionID, fmt.Errorf("load collection: %w", err))
	}
	if err := p.store.UpdateRawCollectionStatus(ctx, collectionID, model.StatusProcessing); err != nil {
		return opLog.ID, p.failBatch(ctx, opLog, collectionID, fmt.Errorf("mark collection processing: %w", err))
	}

	var page struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(col.Payload, &page); err != nil {
		return opLog.ID, p.failBatch(ctx, opLog, collectionID, fmt.Errorf("unreadable payload: %w", err))
	}

	var (
		processed int
		failures  []entryFailure
	)
	for i, raw := range page.Data {
		rec, err := p.transformEntry(col, opLog.ID, i, raw)
		if err == nil {
			err = p.store.InsertNormalizedJob(ctx, rec)
		}
		if err != nil {
			p.log.Warn("entry skipped",
				zap.String("collection_id", collectionID),
				zap.Int("index", i),
				zap.Error(err),
			)
			failures = append(failures, entryFailure{Index: i, Error: err.Error(), Raw: raw})
			continue
		}
		processed++
	}

	status := model.StatusCompleted
	if len(failures) > 0 {
		status = model.StatusPartial
	}
	// The collection itself mirrors the outcome as COMPLETED or FAILED;
	// isolated entry failures do not demote it.
	if err := p.store.UpdateRawCollectionStatus(ctx, collectionID, model.StatusCompleted); err != nil {
		p.log.Error("failed to advance collection status", zap.String("collection_id", collectionID), zap.Error(err))
	}

	now := p.now().UTC()
	opLog.OutputSummary = map[string]any{
		"entries_total":     len(page.Data),
		"entries_processed": processed,
		"entry_failures":    failures,
	}
	opLog.Metrics = map[string]any{
		"success_rate": successRate(processed, len(page.Data)),
	}
	opLog.Finish(status, now)
	if err := p.store.CompleteOperationLog(ctx, opLog); err != nil {
		p.log.Error("failed to complete processing log", zap.String("log_id", opLog.ID), zap.Error(err))
	}
	return opLog.ID, nil
}

// failBatch records a batch-level failure on both the log and the collection.
func (p *Processor) failBatch(ctx context.Context, opLog *model.OperationLog, collectionID string, cause error) error {
	opLog.ErrorDetail = cause.Error()
	opLog.Finish(model.StatusFailed, p.now().UTC())
	if err := p.store.CompleteOperationLog(ctx, opLog); err != nil {
		p.log.Error("failed to complete processing log", zap.String("log_id", opLog.ID), zap.Error(err))
	}
	if err := p.store.UpdateRawCollectionStatus(ctx, collectionID, model.StatusFailed); err != nil && err != store.ErrNotFound {
		p.log.Error("failed to fail collection", zap.String("collection_id", collectionID), zap.Error(err))
	}
	return cause
}

// transformEntry normalizes a single raw entry.
func (p *Processor) transformEntry(col *model.RawCollection, processingID string, idx int, raw json.RawMessage) (*model.NormalizedJobRecord, error) {
	var entry model.RawJobEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("malformed entry: %w", err)
	}

	title := CleanText(entry.Title)
	if title == "" {
		return nil, fmt.Errorf("entry has no job title")
	}
	description := CleanText(entry.Description)
	location := joinLocation(entry.City, entry.State, entry.Country)

	salary := ExtractSalary(&entry, description)

	rec := &model.NormalizedJobRecord{
		ID:              uuid.NewString(),
		ProcessingID:    processingID,
		CollectionID:    col.ID,
		JobIndex:        idx,
		Title:           title,
		Company:         CleanText(entry.EmployerName),
		Location:        location,
		Description:     description,
		JobType:         ClassifyEmploymentType(entry.EmploymentType, title, description),
		RemoteType:      ClassifyRemoteType(entry.IsRemote, location, description),
		ExperienceLevel: InferExperienceLevel(title, description, p.cfg.DefaultExperienceLevel),
		SalaryMin:       salary.Min,
		SalaryMax:       salary.Max,
		SalaryCurrency:  salary.Currency,
		Skills:          ExtractSkills(description),
		TechStack:       ExtractTechStack(description),
		ApplicationURL:  strings.TrimSpace(entry.ApplyLink),
		SourceURL:       strings.TrimSpace(entry.ApplyLink),
		LoadStatus:      model.StatusPending,
		CreatedAt:       p.now().UTC(),
	}

	// Provider-sectioned highlights win over regex extraction.
	if entry.Highlights != nil && len(entry.Highlights.Qualifications) > 0 {
		rec.Requirements = cleanAll(entry.Highlights.Qualifications)
	} else {
		rec.Requirements = ExtractRequirements(entry.Description)
	}
	if entry.Highlights != nil && len(entry.Highlights.Responsibilities) > 0 {
		rec.Responsibilities = cleanAll(entry.Highlights.Responsibilities)
	} else {
		rec.Responsibilities = ExtractResponsibilities(entry.Description)
	}
	if entry.Highlights != nil {
		rec.Benefits = cleanAll(entry.Highlights.Benefits)
	}

	if entry.PostedAt != "" {
		if t, err := time.Parse(time.RFC3339, entry.PostedAt); err == nil {
			utc := t.UTC()
			rec.PostedAt = &utc
		}
	}

	rec.QualityScore = QualityScore(rec, p.cfg.Weights)
	return rec, nil
}

func joinLocation(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = CleanText(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func cleanAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = CleanText(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func successRate(ok, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(ok) / float64(total)
}
