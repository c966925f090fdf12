package model

import (
	"encoding/json"
	"time"
)

// JobType classifies the employment arrangement of a posting.
type JobType string

const (
	JobTypeFullTime   JobType = "FULL_TIME"
	JobTypePartTime   JobType = "PART_TIME"
	JobTypeContract   JobType = "CONTRACT"
	JobTypeInternship JobType = "INTERNSHIP"
	JobTypeTemporary  JobType = "TEMPORARY"
	JobTypeFreelance  JobType = "FREELANCE"
	JobTypeUnknown    JobType = "UNKNOWN"
)

// RemoteType classifies where the work happens.
type RemoteType string

const (
	RemoteTypeRemote RemoteType = "REMOTE"
	RemoteTypeHybrid RemoteType = "HYBRID"
	RemoteTypeOnSite RemoteType = "ON_SITE"
)

// ExperienceLevel classifies seniority.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "ENTRY_LEVEL"
	ExperienceJunior    ExperienceLevel = "JUNIOR"
	ExperienceMid       ExperienceLevel = "MID_LEVEL"
	ExperienceSenior    ExperienceLevel = "SENIOR"
	ExperienceDirector  ExperienceLevel = "DIRECTOR"
	ExperienceExecutive ExperienceLevel = "EXECUTIVE"
)

// RawJobEntry mirrors a single job object in the provider's search response.
// Fields the provider omits stay at their zero value; pointers mark fields
// where absence and zero must be distinguished.
type RawJobEntry struct {
	JobID          string         `json:"job_id"`
	Title          string         `json:"job_title"`
	EmployerName   string         `json:"employer_name"`
	City           string         `json:"job_city"`
	State          string         `json:"job_state"`
	Country        string         `json:"job_country"`
	Description    string         `json:"job_description"`
	EmploymentType string         `json:"job_employment_type"`
	IsRemote       bool           `json:"job_is_remote"`
	ApplyLink      string         `json:"job_apply_link"`
	MinSalary      *float64       `json:"job_min_salary"`
	MaxSalary      *float64       `json:"job_max_salary"`
	SalaryCurrency string         `json:"job_salary_currency"`
	PostedAt       string         `json:"job_posted_at_datetime_utc"`
	Highlights     *JobHighlights `json:"job_highlights"`
}

// JobHighlights carries the provider's pre-sectioned description bullets.
type JobHighlights struct {
	Qualifications   []string `json:"Qualifications"`
	Responsibilities []string `json:"Responsibilities"`
	Benefits         []string `json:"Benefits"`
}

// RawCollection is one persisted page of an external search response.
// Created by the Collector; only the Processor advances its status.
type RawCollection struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	Query       string          `json:"query"`
	Location    string          `json:"location"`
	Page        int             `json:"page"`
	Payload     json.RawMessage `json:"payload"` // full response body, stored as JSONB
	JobCount    int             `json:"job_count"`
	ResponseMS  int64           `json:"response_ms"`
	StatusCode  int             `json:"status_code"`
	Status      Status          `json:"status"`
	CollectedAt time.Time       `json:"collected_at"`
}

// NormalizedJobRecord is one job entry after transformation. The Loader
// owns LoadStatus and DuplicateOf; everything else is immutable once the
// Processor has written the row.
type NormalizedJobRecord struct {
	ID               string          `json:"id"`
	ProcessingID     string          `json:"processing_id"` // operation log of the owning batch
	CollectionID     string          `json:"collection_id"`
	JobIndex         int             `json:"job_index"`
	Title            string          `json:"title"`
	Company          string          `json:"company"`
	Location         string          `json:"location"`
	Description      string          `json:"description"`
	Requirements     []string        `json:"requirements"`
	Responsibilities []string        `json:"responsibilities"`
	JobType          JobType         `json:"job_type"`
	RemoteType       RemoteType      `json:"remote_type"`
	ExperienceLevel  ExperienceLevel `json:"experience_level"`
	SalaryMin        *float64        `json:"salary_min"`
	SalaryMax        *float64        `json:"salary_max"`
	SalaryCurrency   string          `json:"salary_currency"`
	Skills           []string        `json:"skills"`
	TechStack        []string        `json:"tech_stack"`
	Benefits         []string        `json:"benefits"`
	ApplicationURL   string          `json:"application_url"`
	SourceURL        string          `json:"source_url"`
	PostedAt         *time.Time      `json:"posted_at"`
	QualityScore     float64         `json:"quality_score"`
	Embedding        []float32       `json:"embedding,omitempty"` // optional, produced upstream
	DuplicateOf      *string         `json:"duplicate_of"`        // always a canonical id, never another normalized row
	LoadStatus       Status          `json:"load_status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CanonicalJobRecord is the deduplicated, authoritative job entity.
// SourceCount grows on every matched sighting; a canonical row is never
// demoted into a duplicate of another.
type CanonicalJobRecord struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Company          string          `json:"company"`
	Location         string          `json:"location"`
	Description      string          `json:"description"`
	Requirements     []string        `json:"requirements"`
	Responsibilities []string        `json:"responsibilities"`
	JobType          JobType         `json:"job_type"`
	RemoteType       RemoteType      `json:"remote_type"`
	ExperienceLevel  ExperienceLevel `json:"experience_level"`
	SalaryMin        *float64        `json:"salary_min"`
	SalaryMax        *float64        `json:"salary_max"`
	SalaryCurrency   string          `json:"salary_currency"`
	Skills           []string        `json:"skills"`
	TechStack        []string        `json:"tech_stack"`
	ApplicationURL   string          `json:"application_url"`
	SourceCount      int             `json:"source_count"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DuplicationLink records that a normalized job was resolved as a duplicate
// of a canonical record. Old, unreviewed, low-confidence links are eligible
// for the maintenance sweep.
type DuplicationLink struct {
	ID             string    `json:"id"`
	CanonicalID    string    `json:"canonical_id"`
	DuplicateID    string    `json:"duplicate_id"`
	Confidence     float64   `json:"confidence"`
	MatchingFields []string  `json:"matching_fields"`
	Reviewed       bool      `json:"reviewed"`
	CreatedAt      time.Time `json:"created_at"`
}

// OperationType names the phase an OperationLog belongs to.
type OperationType string

const (
	OperationCollection  OperationType = "collection"
	OperationProcessing  OperationType = "processing"
	OperationLoading     OperationType = "loading"
	OperationMaintenance OperationType = "maintenance"
)

// OperationLog is the append-only audit record of one phase execution.
type OperationLog struct {
	ID            string         `json:"id"`
	OperationType OperationType  `json:"operation_type"`
	Status        Status         `json:"status"`
	InputSummary  map[string]any `json:"input_summary"`
	OutputSummary map[string]any `json:"output_summary"`
	ErrorDetail   string         `json:"error_detail"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at"`
	DurationMS    int64          `json:"duration_ms"`
	Metrics       map[string]any `json:"metrics"`
}

// Finish stamps the log with its terminal status and derived timing.
func (l *OperationLog) Finish(status Status, at time.Time) {
	l.Status = status
	l.CompletedAt = &at
	l.DurationMS = at.Sub(l.StartedAt).Milliseconds()
}
