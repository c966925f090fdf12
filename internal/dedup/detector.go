package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

// Config tunes the detector. Zero values fall back to the defaults.
type Config struct {
	// Threshold is the minimum similarity for a tier-3 match.
	Threshold float64
	// CandidateLimit bounds the tier-2 candidate search.
	CandidateLimit int
}

const (
	defaultThreshold      = 0.85
	defaultCandidateLimit = 10
)

// Match describes a detected duplicate.
type Match struct {
	CanonicalID    string
	Confidence     float64
	MatchingFields []string
}

// Detector finds the canonical record a normalized job duplicates, if any.
type Detector struct {
	log   *zap.Logger
	store store.Store
	urls  store.URLIndex // optional fast path; nil skips the index lookup
	cfg   Config
}

// New constructs a Detector. urls may be nil; the detector then relies on
// the store's URL lookup alone.
func New(log *zap.Logger, st store.Store, urls store.URLIndex, cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	return &Detector{log: log, store: st, urls: urls, cfg: cfg}
}

// FindDuplicate returns the match for rec, or nil when the record is new.
//
// Tier 1 is an exact application-URL match and yields confidence 1.0.
// Tier 2 narrows to a bounded set of active canonicals with overlapping
// title and company. Tier 3 scores those candidates with the weighted
// field similarity; the first candidate at or above the threshold wins,
// in candidate order.
func (d *Detector) FindDuplicate(ctx context.Context, rec *model.NormalizedJobRecord) (*Match, error) {
	if url := rec.ApplicationURL; url != "" {
		if m, err := d.matchByURL(ctx, url); err != nil {
			return nil, err
		} else if m != nil {
			return m, nil
		}
	}

	if rec.Title == "" && rec.Company == "" {
		return nil, nil
	}

	candidates, err := d.store.SearchCanonicalCandidates(ctx, rec.Title, rec.Company, d.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	for i := range candidates {
		can := &candidates[i]
		score := Similarity(rec, can)
		if score < d.cfg.Threshold {
			continue
		}
		d.log.Debug("fuzzy duplicate",
			zap.String("canonical_id", can.ID),
			zap.Float64("similarity", score),
		)
		return &Match{
			CanonicalID:    can.ID,
			Confidence:     score,
			MatchingFields: matchingFields(rec, can),
		}, nil
	}
	return nil, nil
}

func (d *Detector) matchByURL(ctx context.Context, url string) (*Match, error) {
	if d.urls != nil {
		id, err := d.urls.LookupURL(ctx, url)
		switch {
		case err == nil:
			return &Match{CanonicalID: id, Confidence: 1.0, MatchingFields: []string{"application_url"}}, nil
		case !errors.Is(err, store.ErrNotFound):
			// Index trouble is not fatal; the store lookup below still
			// answers correctly.
			d.log.Warn("url index lookup failed", zap.Error(err))
		}
	}

	can, err := d.store.FindCanonicalByURL(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find canonical by url: %w", err)
	}
	return &Match{CanonicalID: can.ID, Confidence: 1.0, MatchingFields: []string{"application_url"}}, nil
}

// matchingFields lists which weighted fields individually agree strongly,
// for the duplication link's audit trail.
func matchingFields(rec *model.NormalizedJobRecord, can *model.CanonicalJobRecord) []string {
	var fields []string
	if jaccardWords(rec.Title, can.Title) >= 0.8 {
		fields = append(fields, "title")
	}
	if jaccardWords(rec.Company, can.Company) >= 0.8 {
		fields = append(fields, "company")
	}
	if jaccardWords(rec.Location, can.Location) >= 0.8 {
		fields = append(fields, "location")
	}
	if s, ok := salarySimilarity(rec, can); ok && s >= 0.9 {
		fields = append(fields, "salary")
	}
	return fields
}
