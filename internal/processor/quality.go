package processor

import "jobpulse/ingest-service/internal/model"

// QualityWeights parameterize the completeness score. The defaults mirror
// long-standing tuning; they are configuration, not something the scorer
// should hide.
type QualityWeights struct {
	Required          float64 // per present required field
	Optional          float64 // per present important-optional field
	DescriptionBonus  float64 // when the description meets the length floor
	MinDescriptionLen int
}

// DefaultQualityWeights returns 1.0 / 0.5 / 0.5 with a 50-character floor.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		Required:          1.0,
		Optional:          0.5,
		DescriptionBonus:  0.5,
		MinDescriptionLen: 50,
	}
}

// QualityScore rates a record's completeness in [0,1]: the attained weight
// over the maximum attainable. A record with no required field at all
// scores zero regardless of optional fields.
func QualityScore(r *model.NormalizedJobRecord, w QualityWeights) float64 {
	required := []bool{
		r.Title != "",
		r.Company != "",
		r.Location != "",
		r.Description != "",
	}
	optional := []bool{
		r.SalaryMin != nil || r.SalaryMax != nil,
		r.JobType != model.JobTypeUnknown && r.JobType != "",
		len(r.Skills) > 0 || len(r.TechStack) > 0,
		r.ApplicationURL != "",
		len(r.Requirements) > 0,
	}

	max := float64(len(required))*w.Required + float64(len(optional))*w.Optional + w.DescriptionBonus
	if max <= 0 {
		return 0
	}

	var score float64
	requiredPresent := 0
	for _, ok := range required {
		if ok {
			requiredPresent++
			score += w.Required
		}
	}
	if requiredPresent == 0 {
		return 0
	}
	for _, ok := range optional {
		if ok {
			score += w.Optional
		}
	}
	if len(r.Description) >= w.MinDescriptionLen {
		score += w.DescriptionBonus
	}

	score /= max
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
