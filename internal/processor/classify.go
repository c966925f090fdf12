package processor

import (
	"strings"

	"jobpulse/ingest-service/internal/model"
)

// employmentKeywords maps lowered keywords to job types, scanned in order
// so the more specific terms win over "full time".
var employmentKeywords = []struct {
	term string
	t    model.JobType
}{
	{"intern", model.JobTypeInternship},
	{"internship", model.JobTypeInternship},
	{"freelance", model.JobTypeFreelance},
	{"contractor", model.JobTypeContract},
	{"contract", model.JobTypeContract},
	{"temporary", model.JobTypeTemporary},
	{"temp ", model.JobTypeTemporary},
	{"part-time", model.JobTypePartTime},
	{"part time", model.JobTypePartTime},
	{"full-time", model.JobTypeFullTime},
	{"full time", model.JobTypeFullTime},
}

// providerEmploymentTypes maps the provider's own employment codes.
var providerEmploymentTypes = map[string]model.JobType{
	"FULLTIME":   model.JobTypeFullTime,
	"PARTTIME":   model.JobTypePartTime,
	"CONTRACTOR": model.JobTypeContract,
	"CONTRACT":   model.JobTypeContract,
	"INTERN":     model.JobTypeInternship,
	"TEMPORARY":  model.JobTypeTemporary,
}

// ClassifyEmploymentType prefers the provider's explicit code, then keyword
// rules over title + description.
func ClassifyEmploymentType(providerCode, title, description string) model.JobType {
	if t, ok := providerEmploymentTypes[strings.ToUpper(strings.TrimSpace(providerCode))]; ok {
		return t
	}
	combined := strings.ToLower(title + " " + description)
	for _, k := range employmentKeywords {
		if strings.Contains(combined, k.term) {
			return k.t
		}
	}
	return model.JobTypeUnknown
}

// ClassifyRemoteType works off the provider's remote flag first, then
// hybrid/remote/on-site keywords in location + description.
func ClassifyRemoteType(isRemote bool, location, description string) model.RemoteType {
	combined := strings.ToLower(location + " " + description)
	// Hybrid wins over a bare remote mention: "hybrid (2 days remote)" is
	// hybrid, not remote.
	if strings.Contains(combined, "hybrid") {
		return model.RemoteTypeHybrid
	}
	if isRemote {
		return model.RemoteTypeRemote
	}
	for _, term := range []string{"fully remote", "100% remote", "remote-first", "work from home", "remote"} {
		if strings.Contains(combined, term) {
			return model.RemoteTypeRemote
		}
	}
	return model.RemoteTypeOnSite
}
