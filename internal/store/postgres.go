package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobpulse/ingest-service/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the ingestion tables and indexes when missing.
// Called once at startup, mirroring index bootstrap at connect time.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_collections (
			id UUID PRIMARY KEY,
			provider TEXT NOT NULL,
			query TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			page INT NOT NULL,
			payload JSONB NOT NULL,
			job_count INT NOT NULL DEFAULT 0,
			response_ms BIGINT NOT NULL DEFAULT 0,
			status_code INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			collected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_collections_status ON raw_collections (status)`,
		`CREATE TABLE IF NOT EXISTS normalized_jobs (
			id UUID PRIMARY KEY,
			processing_id UUID NOT NULL,
			collection_id UUID NOT NULL REFERENCES raw_collections (id),
			job_index INT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			requirements TEXT[] NOT NULL DEFAULT '{}',
			responsibilities TEXT[] NOT NULL DEFAULT '{}',
			job_type TEXT NOT NULL DEFAULT 'UNKNOWN',
			remote_type TEXT NOT NULL DEFAULT 'ON_SITE',
			experience_level TEXT NOT NULL DEFAULT 'MID_LEVEL',
			salary_min DOUBLE PRECISION,
			salary_max DOUBLE PRECISION,
			salary_currency TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			tech_stack TEXT[] NOT NULL DEFAULT '{}',
			benefits TEXT[] NOT NULL DEFAULT '{}',
			application_url TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			posted_at TIMESTAMPTZ,
			quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			duplicate_of UUID,
			load_status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_normalized_jobs_processing ON normalized_jobs (processing_id, load_status)`,
		`CREATE TABLE IF NOT EXISTS canonical_jobs (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			requirements TEXT[] NOT NULL DEFAULT '{}',
			responsibilities TEXT[] NOT NULL DEFAULT '{}',
			job_type TEXT NOT NULL DEFAULT 'UNKNOWN',
			remote_type TEXT NOT NULL DEFAULT 'ON_SITE',
			experience_level TEXT NOT NULL DEFAULT 'MID_LEVEL',
			salary_min DOUBLE PRECISION,
			salary_max DOUBLE PRECISION,
			salary_currency TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			tech_stack TEXT[] NOT NULL DEFAULT '{}',
			application_url TEXT NOT NULL DEFAULT '',
			source_count INT NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_jobs_url ON canonical_jobs (application_url) WHERE application_url <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_jobs_title_company ON canonical_jobs (lower(title), lower(company))`,
		`CREATE TABLE IF NOT EXISTS duplication_links (
			id UUID PRIMARY KEY,
			canonical_id UUID NOT NULL REFERENCES canonical_jobs (id),
			duplicate_id UUID NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			matching_fields TEXT[] NOT NULL DEFAULT '{}',
			reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS operation_logs (
			id UUID PRIMARY KEY,
			operation_type TEXT NOT NULL,
			status TEXT NOT NULL,
			input_summary JSONB,
			output_summary JSONB,
			error_detail TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			metrics JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operation_logs_started ON operation_logs (started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ── Raw collections ────────────────────────────────────────────────────────

func (p *Postgres) InsertRawCollection(ctx context.Context, c *model.RawCollection) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO raw_collections
		   (id, provider, query, location, page, payload, job_count, response_ms, status_code, status, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Provider, c.Query, c.Location, c.Page, c.Payload,
		c.JobCount, c.ResponseMS, c.StatusCode, c.Status, c.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert raw collection: %w", err)
	}
	return nil
}

func (p *Postgres) GetRawCollection(ctx context.Context, id string) (*model.RawCollection, error) {
	var c model.RawCollection
	err := p.pool.QueryRow(ctx,
		`SELECT id, provider, query, location, page, payload, job_count, response_ms, status_code, status, collected_at
		 FROM raw_collections WHERE id = $1`, id,
	).Scan(&c.ID, &c.Provider, &c.Query, &c.Location, &c.Page, &c.Payload,
		&c.JobCount, &c.ResponseMS, &c.StatusCode, &c.Status, &c.CollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw collection: %w", err)
	}
	return &c, nil
}

func (p *Postgres) UpdateRawCollectionStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE raw_collections SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update raw collection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListPendingCollections(ctx context.Context, limit int) ([]model.RawCollection, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, provider, query, location, page, payload, job_count, response_ms, status_code, status, collected_at
		 FROM raw_collections WHERE status = $1 ORDER BY collected_at LIMIT $2`,
		model.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending collections: %w", err)
	}
	defer rows.Close()

	var out []model.RawCollection
	for rows.Next() {
		var c model.RawCollection
		if err := rows.Scan(&c.ID, &c.Provider, &c.Query, &c.Location, &c.Page, &c.Payload,
			&c.JobCount, &c.ResponseMS, &c.StatusCode, &c.Status, &c.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan raw collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) LatestCollectionTime(ctx context.Context) (time.Time, error) {
	var t *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT max(collected_at) FROM raw_collections`).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest collection time: %w", err)
	}
	if t == nil {
		return time.Time{}, ErrNotFound
	}
	return *t, nil
}

// ── Normalized job records ─────────────────────────────────────────────────

func (p *Postgres) InsertNormalizedJob(ctx context.Context, r *model.NormalizedJobRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO normalized_jobs
		   (id, processing_id, collection_id, job_index, title, company, location, description,
		    requirements, responsibilities, job_type, remote_type, experience_level,
		    salary_min, salary_max, salary_currency, skills, tech_stack, benefits,
		    application_url, source_url, posted_at, quality_score, duplicate_of, load_status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`,
		r.ID, r.ProcessingID, r.CollectionID, r.JobIndex, r.Title, r.Company, r.Location, r.Description,
		r.Requirements, r.Responsibilities, r.JobType, r.RemoteType, r.ExperienceLevel,
		r.SalaryMin, r.SalaryMax, r.SalaryCurrency, r.Skills, r.TechStack, r.Benefits,
		r.ApplicationURL, r.SourceURL, r.PostedAt, r.QualityScore, r.DuplicateOf, r.LoadStatus, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert normalized job: %w", err)
	}
	return nil
}

func (p *Postgres) ListPendingNormalizedJobs(ctx context.Context, processingID string) ([]model.NormalizedJobRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, processing_id, collection_id, job_index, title, company, location, description,
		        requirements, responsibilities, job_type, remote_type, experience_level,
		        salary_min, salary_max, salary_currency, skills, tech_stack, benefits,
		        application_url, source_url, posted_at, quality_score, duplicate_of, load_status, created_at
		 FROM normalized_jobs
		 WHERE processing_id = $1 AND load_status = $2
		 ORDER BY job_index`,
		processingID, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending normalized jobs: %w", err)
	}
	defer rows.Close()

	var out []model.NormalizedJobRecord
	for rows.Next() {
		var r model.NormalizedJobRecord
		if err := rows.Scan(&r.ID, &r.ProcessingID, &r.CollectionID, &r.JobIndex, &r.Title, &r.Company,
			&r.Location, &r.Description, &r.Requirements, &r.Responsibilities, &r.JobType, &r.RemoteType,
			&r.ExperienceLevel, &r.SalaryMin, &r.SalaryMax, &r.SalaryCurrency, &r.Skills, &r.TechStack,
			&r.Benefits, &r.ApplicationURL, &r.SourceURL, &r.PostedAt, &r.QualityScore, &r.DuplicateOf,
			&r.LoadStatus, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan normalized job: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateNormalizedJobLoad(ctx context.Context, id string, status model.Status, duplicateOf *string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE normalized_jobs SET load_status = $1, duplicate_of = $2 WHERE id = $3`,
		status, duplicateOf, id)
	if err != nil {
		return fmt.Errorf("update normalized job load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Canonical job records ──────────────────────────────────────────────────

func (p *Postgres) InsertCanonicalJob(ctx context.Context, c *model.CanonicalJobRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO canonical_jobs
		   (id, title, company, location, description, requirements, responsibilities,
		    job_type, remote_type, experience_level, salary_min, salary_max, salary_currency,
		    skills, tech_stack, application_url, source_count, active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		c.ID, c.Title, c.Company, c.Location, c.Description, c.Requirements, c.Responsibilities,
		c.JobType, c.RemoteType, c.ExperienceLevel, c.SalaryMin, c.SalaryMax, c.SalaryCurrency,
		c.Skills, c.TechStack, c.ApplicationURL, c.SourceCount, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert canonical job: %w", err)
	}
	return nil
}

func (p *Postgres) FindCanonicalByURL(ctx context.Context, url string) (*model.CanonicalJobRecord, error) {
	var c model.CanonicalJobRecord
	err := p.pool.QueryRow(ctx,
		`SELECT id, title, company, location, description, requirements, responsibilities,
		        job_type, remote_type, experience_level, salary_min, salary_max, salary_currency,
		        skills, tech_stack, application_url, source_count, active, created_at, updated_at
		 FROM canonical_jobs WHERE application_url = $1 AND active LIMIT 1`, url,
	).Scan(&c.ID, &c.Title, &c.Company, &c.Location, &c.Description, &c.Requirements, &c.Responsibilities,
		&c.JobType, &c.RemoteType, &c.ExperienceLevel, &c.SalaryMin, &c.SalaryMax, &c.SalaryCurrency,
		&c.Skills, &c.TechStack, &c.ApplicationURL, &c.SourceCount, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find canonical by url: %w", err)
	}
	return &c, nil
}

func (p *Postgres) SearchCanonicalCandidates(ctx context.Context, title, company string, limit int) ([]model.CanonicalJobRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, company, location, description, requirements, responsibilities,
		        job_type, remote_type, experience_level, salary_min, salary_max, salary_currency,
		        skills, tech_stack, application_url, source_count, active, created_at, updated_at
		 FROM canonical_jobs
		 WHERE active
		   AND (lower(title) LIKE '%' || lower($1) || '%' OR lower($1) LIKE '%' || lower(title) || '%')
		   AND (lower(company) LIKE '%' || lower($2) || '%' OR lower($2) LIKE '%' || lower(company) || '%')
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		title, company, limit)
	if err != nil {
		return nil, fmt.Errorf("search canonical candidates: %w", err)
	}
	defer rows.Close()

	var out []model.CanonicalJobRecord
	for rows.Next() {
		var c model.CanonicalJobRecord
		if err := rows.Scan(&c.ID, &c.Title, &c.Company, &c.Location, &c.Description, &c.Requirements,
			&c.Responsibilities, &c.JobType, &c.RemoteType, &c.ExperienceLevel, &c.SalaryMin, &c.SalaryMax,
			&c.SalaryCurrency, &c.Skills, &c.TechStack, &c.ApplicationURL, &c.SourceCount, &c.Active,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan canonical job: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ── Duplication links ──────────────────────────────────────────────────────

func (p *Postgres) InsertDuplicationLink(ctx context.Context, l *model.DuplicationLink) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO duplication_links (id, canonical_id, duplicate_id, confidence, matching_fields, reviewed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.CanonicalID, l.DuplicateID, l.Confidence, l.MatchingFields, l.Reviewed, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert duplication link: %w", err)
	}
	return nil
}

func (p *Postgres) MergeDuplicate(ctx context.Context, l *model.DuplicationLink) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	tag, err := tx.Exec(ctx,
		`UPDATE canonical_jobs SET source_count = source_count + 1, updated_at = now() WHERE id = $1`,
		l.CanonicalID)
	if err != nil {
		return fmt.Errorf("increment source count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO duplication_links (id, canonical_id, duplicate_id, confidence, matching_fields, reviewed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.CanonicalID, l.DuplicateID, l.Confidence, l.MatchingFields, l.Reviewed, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert duplication link: %w", err)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE normalized_jobs SET load_status = $1, duplicate_of = $2 WHERE id = $3`,
		model.StatusCompleted, l.CanonicalID, l.DuplicateID)
	if err != nil {
		return fmt.Errorf("update normalized job load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (p *Postgres) DeleteStaleDuplicationLinks(ctx context.Context, olderThan time.Time, maxConfidence float64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM duplication_links
		 WHERE NOT reviewed AND created_at < $1 AND confidence < $2`,
		olderThan, maxConfidence)
	if err != nil {
		return 0, fmt.Errorf("delete stale duplication links: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ── Operation logs ─────────────────────────────────────────────────────────

func (p *Postgres) InsertOperationLog(ctx context.Context, l *model.OperationLog) error {
	input, err := json.Marshal(l.InputSummary)
	if err != nil {
		return fmt.Errorf("marshal input summary: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO operation_logs (id, operation_type, status, input_summary, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.OperationType, l.Status, input, l.StartedAt)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

func (p *Postgres) CompleteOperationLog(ctx context.Context, l *model.OperationLog) error {
	output, err := json.Marshal(l.OutputSummary)
	if err != nil {
		return fmt.Errorf("marshal output summary: %w", err)
	}
	metrics, err := json.Marshal(l.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE operation_logs
		 SET status = $1, output_summary = $2, error_detail = $3, completed_at = $4, duration_ms = $5, metrics = $6
		 WHERE id = $7`,
		l.Status, output, l.ErrorDetail, l.CompletedAt, l.DurationMS, metrics, l.ID)
	if err != nil {
		return fmt.Errorf("complete operation log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetOperationLog(ctx context.Context, id string) (*model.OperationLog, error) {
	var (
		l       model.OperationLog
		input   []byte
		output  []byte
		metrics []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, operation_type, status, input_summary, output_summary, error_detail,
		        started_at, completed_at, duration_ms, metrics
		 FROM operation_logs WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.OperationType, &l.Status, &input, &output, &l.ErrorDetail,
		&l.StartedAt, &l.CompletedAt, &l.DurationMS, &metrics)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get operation log: %w", err)
	}
	for _, pair := range []struct {
		raw []byte
		dst *map[string]any
	}{{input, &l.InputSummary}, {output, &l.OutputSummary}, {metrics, &l.Metrics}} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode operation log %s: %w", id, err)
		}
	}
	return &l, nil
}

func (p *Postgres) RecentOperationStats(ctx context.Context, since time.Time) (OperationStats, error) {
	var s OperationStats
	err := p.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'COMPLETED'),
		        count(*) FILTER (WHERE status = 'PARTIAL'),
		        count(*) FILTER (WHERE status = 'FAILED')
		 FROM operation_logs
		 WHERE started_at >= $1 AND completed_at IS NOT NULL`,
		since,
	).Scan(&s.Total, &s.Completed, &s.Partial, &s.Failed)
	if err != nil {
		return OperationStats{}, fmt.Errorf("recent operation stats: %w", err)
	}
	return s, nil
}
