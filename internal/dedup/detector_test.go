package dedup

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

func f(v float64) *float64 { return &v }

func normalized(title, company, location string) *model.NormalizedJobRecord {
	return &model.NormalizedJobRecord{
		ID:       "n-1",
		Title:    title,
		Company:  company,
		Location: location,
	}
}

func canonical(id, title, company, location string) *model.CanonicalJobRecord {
	now := time.Now().UTC()
	return &model.CanonicalJobRecord{
		ID:          id,
		Title:       title,
		Company:     company,
		Location:    location,
		SourceCount: 1,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ── Similarity ─────────────────────────────────────────────────────────────

func TestSimilarity_IdenticalRecords(t *testing.T) {
	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	can := canonical("c-1", "Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	if got := Similarity(rec, can); got != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", got)
	}
}

func TestSimilarity_IdenticalWithSalary(t *testing.T) {
	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	rec.SalaryMin, rec.SalaryMax = f(80000), f(95000)
	can := canonical("c-1", "Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	can.SalaryMin, can.SalaryMax = f(80000), f(95000)
	if got := Similarity(rec, can); got != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", got)
	}
}

func TestSimilarity_Disjoint(t *testing.T) {
	rec := normalized("Baker", "Sweet Things", "Paris")
	can := canonical("c-1", "Kernel Developer", "Acme GmbH", "Tokyo")
	if got := Similarity(rec, can); got != 0.0 {
		t.Errorf("Similarity = %v, want 0.0", got)
	}
}

func TestSimilarity_SalaryDivergenceLowersScore(t *testing.T) {
	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	rec.SalaryMin, rec.SalaryMax = f(50000), f(50000)
	can := canonical("c-1", "Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	can.SalaryMin, can.SalaryMax = f(100000), f(100000)

	// Salary midpoints 50k vs 100k: similarity 1 - 50k/75k = 1/3, which
	// contributes with weight 0.1 against 0.9 of perfect text matches.
	want := (0.9 + 0.1/3.0) / 1.0
	if got := Similarity(rec, can); math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
}

func TestSimilarity_PartialTitleOverlap(t *testing.T) {
	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin")
	can := canonical("c-1", "Senior Platform Engineer", "Acme GmbH", "Berlin")
	got := Similarity(rec, can)
	if got >= 1.0 || got <= 0.5 {
		t.Errorf("Similarity = %v, want a value in (0.5, 1.0)", got)
	}
}

// ── Detector tiers ─────────────────────────────────────────────────────────

func newDetector(t *testing.T) (*Detector, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return New(zap.NewNop(), st, st, Config{}), st
}

func TestFindDuplicate_ExactURL(t *testing.T) {
	det, st := newDetector(t)
	ctx := context.Background()

	can := canonical("c-1", "Go Engineer", "Acme GmbH", "Berlin")
	can.ApplicationURL = "https://jobs.example.com/1"
	if err := st.InsertCanonicalJob(ctx, can); err != nil {
		t.Fatal(err)
	}
	if err := st.AddURL(ctx, can.ApplicationURL, can.ID); err != nil {
		t.Fatal(err)
	}

	// Completely different text, same URL: the URL tier wins outright.
	rec := normalized("Backend Dev", "Some Agency", "")
	rec.ApplicationURL = "https://jobs.example.com/1"

	m, err := det.FindDuplicate(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.CanonicalID != "c-1" || m.Confidence != 1.0 {
		t.Fatalf("match = %+v, want c-1 at confidence 1.0", m)
	}
	if len(m.MatchingFields) != 1 || m.MatchingFields[0] != "application_url" {
		t.Errorf("MatchingFields = %v", m.MatchingFields)
	}
}

func TestFindDuplicate_URLFallsBackToStore(t *testing.T) {
	st := store.NewMemory()
	det := New(zap.NewNop(), st, nil, Config{}) // no URL index wired
	ctx := context.Background()

	can := canonical("c-1", "Go Engineer", "Acme GmbH", "Berlin")
	can.ApplicationURL = "https://jobs.example.com/1"
	if err := st.InsertCanonicalJob(ctx, can); err != nil {
		t.Fatal(err)
	}

	rec := normalized("Go Engineer", "Acme GmbH", "Berlin")
	rec.ApplicationURL = "https://jobs.example.com/1"

	m, err := det.FindDuplicate(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.CanonicalID != "c-1" {
		t.Fatalf("match = %+v, want c-1 via store URL lookup", m)
	}
}

func TestFindDuplicate_FuzzyMatch(t *testing.T) {
	det, st := newDetector(t)
	ctx := context.Background()

	if err := st.InsertCanonicalJob(ctx, canonical("c-1", "Senior Go Engineer", "Acme GmbH", "Berlin, DE")); err != nil {
		t.Fatal(err)
	}

	// Different URL, near-identical text.
	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin, DE")
	rec.ApplicationURL = "https://other-board.example.com/99"

	m, err := det.FindDuplicate(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.CanonicalID != "c-1" {
		t.Fatalf("match = %+v, want fuzzy match on c-1", m)
	}
	if m.Confidence < 0.85 {
		t.Errorf("Confidence = %v, want >= threshold", m.Confidence)
	}
	for _, field := range []string{"title", "company", "location"} {
		if !contains(m.MatchingFields, field) {
			t.Errorf("MatchingFields %v missing %q", m.MatchingFields, field)
		}
	}
}

func TestFindDuplicate_BelowThreshold(t *testing.T) {
	det, st := newDetector(t)
	ctx := context.Background()

	if err := st.InsertCanonicalJob(ctx, canonical("c-1", "Senior Go Engineer", "Acme GmbH", "Berlin")); err != nil {
		t.Fatal(err)
	}

	rec := normalized("Go Engineer Intern", "Acme GmbH", "Munich")
	m, err := det.FindDuplicate(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("match = %+v, want no match below threshold", m)
	}
}

func TestFindDuplicate_FirstCandidateAboveThresholdWins(t *testing.T) {
	det, st := newDetector(t)
	ctx := context.Background()

	// Two equally perfect candidates; candidate order decides.
	for _, id := range []string{"c-1", "c-2"} {
		if err := st.InsertCanonicalJob(ctx, canonical(id, "Senior Go Engineer", "Acme GmbH", "Berlin")); err != nil {
			t.Fatal(err)
		}
	}

	rec := normalized("Senior Go Engineer", "Acme GmbH", "Berlin")
	m, err := det.FindDuplicate(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.CanonicalID != "c-1" {
		t.Fatalf("match = %+v, want the first candidate c-1", m)
	}
}

func TestFindDuplicate_NoIdentityFields(t *testing.T) {
	det, _ := newDetector(t)
	m, err := det.FindDuplicate(context.Background(), &model.NormalizedJobRecord{ID: "n-1"})
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("match = %+v, want nil for an empty record", m)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
