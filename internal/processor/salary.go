package processor

import (
	"regexp"
	"strconv"
	"strings"

	"jobpulse/ingest-service/internal/model"
)

// Salary extraction runs a prioritized ladder: explicit provider fields,
// then a range found in text, then a single value in text.
var (
	// "$120,000 - $150,000", "120k–150k", "€90.000 - €110.000"
	salaryRangePattern = regexp.MustCompile(
		`(?i)[\$€£]?\s*(\d{1,3}(?:[,.]\d{3})+|\d{2,3}k|\d{4,7})\s*(?:-|–|to)\s*[\$€£]?\s*(\d{1,3}(?:[,.]\d{3})+|\d{2,3}k|\d{4,7})`)
	// "up to $95,000", "salary: 85k"
	salarySinglePattern = regexp.MustCompile(
		`(?i)(?:salary|compensation|pay|up to)[^\d\$€£]{0,12}[\$€£]?\s*(\d{1,3}(?:[,.]\d{3})+|\d{2,3}k|\d{5,7})`)
	currencyPattern = regexp.MustCompile(`(?i)\b(usd|eur|gbp|cad|aud)\b|[\$€£]`)
)

// Salary is the extracted compensation range; Min/Max are nil when absent.
type Salary struct {
	Min      *float64
	Max      *float64
	Currency string
}

// ExtractSalary resolves salary from the raw entry's explicit fields first,
// falling back to text patterns over the description.
func ExtractSalary(entry *model.RawJobEntry, description string) Salary {
	if entry.MinSalary != nil || entry.MaxSalary != nil {
		return Salary{
			Min:      entry.MinSalary,
			Max:      entry.MaxSalary,
			Currency: entry.SalaryCurrency,
		}
	}

	if m := salaryRangePattern.FindStringSubmatch(description); m != nil {
		lo, okLo := parseAmount(m[1])
		hi, okHi := parseAmount(m[2])
		if okLo && okHi && lo <= hi && plausibleSalary(lo) && plausibleSalary(hi) {
			return Salary{Min: &lo, Max: &hi, Currency: detectCurrency(description)}
		}
	}

	if m := salarySinglePattern.FindStringSubmatch(description); m != nil {
		if v, ok := parseAmount(m[1]); ok && plausibleSalary(v) {
			return Salary{Min: &v, Max: &v, Currency: detectCurrency(description)}
		}
	}

	return Salary{}
}

func parseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	s = strings.NewReplacer(",", "", ".", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}

// plausibleSalary filters out years, team sizes and zip codes the range
// regex can latch onto.
func plausibleSalary(v float64) bool {
	return v >= 10000 && v <= 2000000
}

func detectCurrency(text string) string {
	m := currencyPattern.FindString(text)
	switch strings.ToUpper(m) {
	case "$":
		return "USD"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	case "":
		return ""
	default:
		return strings.ToUpper(m)
	}
}
