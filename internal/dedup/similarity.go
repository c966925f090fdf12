// Package dedup decides whether a normalized job record is a new posting
// or another sighting of a canonical job already on file. Detection runs
// three tiers of increasing cost: exact URL match, a bounded candidate
// search, then weighted field similarity.
package dedup

import (
	"math"
	"strings"

	"jobpulse/ingest-service/internal/model"
)

// Field weights of the similarity score. Title dominates, salary is a
// weak tiebreaker.
const (
	weightTitle    = 0.4
	weightCompany  = 0.3
	weightLocation = 0.2
	weightSalary   = 0.1
)

// Similarity returns a weighted score in [0,1] between a normalized record
// and a canonical record. Fields absent on both sides are dropped from the
// weighting, so two identical records score 1.0 even without salary data.
func Similarity(rec *model.NormalizedJobRecord, can *model.CanonicalJobRecord) float64 {
	type component struct {
		weight  float64
		score   float64
		present bool
	}
	parts := []component{
		{weightTitle, jaccardWords(rec.Title, can.Title), rec.Title != "" || can.Title != ""},
		{weightCompany, jaccardWords(rec.Company, can.Company), rec.Company != "" || can.Company != ""},
		{weightLocation, jaccardWords(rec.Location, can.Location), rec.Location != "" || can.Location != ""},
	}
	if s, ok := salarySimilarity(rec, can); ok {
		parts = append(parts, component{weightSalary, s, true})
	}

	var sum, total float64
	for _, p := range parts {
		if !p.present {
			continue
		}
		sum += p.weight * p.score
		total += p.weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// jaccardWords is word-set Jaccard similarity over lowered tokens.
func jaccardWords(a, b string) float64 {
	as := wordSet(a)
	bs := wordSet(b)
	if len(as) == 0 && len(bs) == 0 {
		return 0
	}
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for w := range as {
		if bs[w] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()[]{}!?\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// salarySimilarity compares the salary midpoints as 1 - |Δ|/avg, floored
// at zero. It reports ok=false when either side has no salary at all, so
// the caller can drop the component instead of guessing.
func salarySimilarity(rec *model.NormalizedJobRecord, can *model.CanonicalJobRecord) (float64, bool) {
	a, okA := midpoint(rec.SalaryMin, rec.SalaryMax)
	b, okB := midpoint(can.SalaryMin, can.SalaryMax)
	if !okA || !okB {
		return 0, false
	}
	avg := (a + b) / 2
	if avg == 0 {
		return 0, true
	}
	s := 1 - math.Abs(a-b)/avg
	if s < 0 {
		return 0, true
	}
	return s, true
}

func midpoint(min, max *float64) (float64, bool) {
	switch {
	case min != nil && max != nil:
		return (*min + *max) / 2, true
	case min != nil:
		return *min, true
	case max != nil:
		return *max, true
	default:
		return 0, false
	}
}
