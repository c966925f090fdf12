package processor

import (
	"testing"

	"jobpulse/ingest-service/internal/model"
)

func fullRecord() *model.NormalizedJobRecord {
	min, max := 90000.0, 120000.0
	return &model.NormalizedJobRecord{
		Title:          "Backend Engineer",
		Company:        "Acme GmbH",
		Location:       "Berlin, Germany",
		Description:    "We build data pipelines in Go and Postgres, at scale, daily.", // 60 chars
		JobType:        model.JobTypeFullTime,
		SalaryMin:      &min,
		SalaryMax:      &max,
		Skills:         []string{"system design"},
		Requirements:   []string{"3+ years of Go"},
		ApplicationURL: "https://jobs.acme.test/1",
	}
}

// ── Bounds ─────────────────────────────────────────────────────────────────

func TestQualityScore_FullRecordScoresOne(t *testing.T) {
	r := fullRecord()
	if len(r.Description) < 50 {
		t.Fatalf("test record description too short: %d", len(r.Description))
	}
	got := QualityScore(r, DefaultQualityWeights())
	if got != 1.0 {
		t.Errorf("QualityScore(full record) = %v, want 1.0", got)
	}
}

func TestQualityScore_NoRequiredFieldsScoresZero(t *testing.T) {
	min := 90000.0
	r := &model.NormalizedJobRecord{
		// All required fields empty; some optional fields set.
		JobType:   model.JobTypeContract,
		SalaryMin: &min,
		Skills:    []string{"agile"},
	}
	if got := QualityScore(r, DefaultQualityWeights()); got != 0.0 {
		t.Errorf("QualityScore(no required fields) = %v, want 0.0", got)
	}
}

// ── Monotonicity ───────────────────────────────────────────────────────────

func TestQualityScore_RemovingRequiredFieldDecreasesScore(t *testing.T) {
	full := QualityScore(fullRecord(), DefaultQualityWeights())

	cases := []struct {
		name string
		mut  func(*model.NormalizedJobRecord)
	}{
		{"title", func(r *model.NormalizedJobRecord) { r.Title = "" }},
		{"company", func(r *model.NormalizedJobRecord) { r.Company = "" }},
		{"location", func(r *model.NormalizedJobRecord) { r.Location = "" }},
		{"description", func(r *model.NormalizedJobRecord) { r.Description = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := fullRecord()
			c.mut(r)
			if got := QualityScore(r, DefaultQualityWeights()); got >= full {
				t.Errorf("score without %s = %v, want < %v", c.name, got, full)
			}
		})
	}
}

func TestQualityScore_ShortDescriptionLosesBonus(t *testing.T) {
	r := fullRecord()
	r.Description = "Too short." // still present, just under the floor
	got := QualityScore(r, DefaultQualityWeights())
	full := QualityScore(fullRecord(), DefaultQualityWeights())
	if got >= full {
		t.Errorf("score with short description = %v, want < %v", got, full)
	}
	if got <= 0 {
		t.Errorf("score with short description = %v, want > 0", got)
	}
}

func TestQualityScore_ClampedToUnitInterval(t *testing.T) {
	w := QualityWeights{Required: 10, Optional: 10, DescriptionBonus: 10, MinDescriptionLen: 1}
	if got := QualityScore(fullRecord(), w); got < 0 || got > 1 {
		t.Errorf("QualityScore = %v, want within [0,1]", got)
	}
}
