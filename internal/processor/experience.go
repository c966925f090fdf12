package processor

import (
	"regexp"
	"strconv"
	"strings"

	"jobpulse/ingest-service/internal/model"
)

// noExperienceSignals mark postings explicitly open to beginners.
var noExperienceSignals = []string{
	"no experience required",
	"no experience necessary",
	"no prior experience",
	"without experience",
	"entry level",
	"entry-level",
}

// seniorityKeywords are scanned in fixed priority order: the most senior
// signal present wins, so "senior director" resolves to DIRECTOR.
var seniorityKeywords = []struct {
	level model.ExperienceLevel
	terms []string
}{
	{model.ExperienceExecutive, []string{"executive", "chief ", "cto", "ceo", "cfo", "vp of", "vice president"}},
	{model.ExperienceDirector, []string{"director", "head of"}},
	{model.ExperienceSenior, []string{"senior", "sr.", "sr ", "staff engineer", "principal", "lead "}},
	{model.ExperienceJunior, []string{"junior", "jr.", "jr ", "graduate", "trainee"}},
}

// yearsPattern matches "3+ years", "5-8 years", "seven (7) years" styles
// down to their leading number.
var yearsPattern = regexp.MustCompile(`(\d{1,2})\s*(?:\+|-\s*\d{1,2})?\s*(?:years?|yrs?)`)

// InferExperienceLevel applies the layered heuristic: explicit
// no-experience signal, then seniority keywords, then a year-count regex,
// then the configured fallback.
func InferExperienceLevel(title, description string, fallback model.ExperienceLevel) model.ExperienceLevel {
	combined := strings.ToLower(title + " " + description)

	for _, signal := range noExperienceSignals {
		if strings.Contains(combined, signal) {
			return model.ExperienceEntry
		}
	}

	for _, group := range seniorityKeywords {
		for _, term := range group.terms {
			if strings.Contains(combined, term) {
				return group.level
			}
		}
	}

	if m := yearsPattern.FindStringSubmatch(combined); m != nil {
		years, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case years < 2:
				return model.ExperienceEntry
			case years < 5:
				return model.ExperienceMid
			default:
				return model.ExperienceSenior
			}
		}
	}

	return fallback
}
