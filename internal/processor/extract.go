package processor

import (
	"regexp"
	"strings"
)

// skillsVocabulary lists the general skills the processor recognizes.
// Matching is case-insensitive whole-word where feasible; multi-word terms
// are matched as substrings of the lowered text.
var skillsVocabulary = []string{
	"project management", "agile", "scrum", "kanban", "communication",
	"leadership", "problem solving", "teamwork", "mentoring", "stakeholder management",
	"data analysis", "machine learning", "deep learning", "devops", "ci/cd",
	"testing", "debugging", "code review", "system design", "architecture",
	"microservices", "rest api", "graphql", "distributed systems", "security",
}

// techVocabulary lists the concrete technologies tracked as tech stack.
var techVocabulary = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "rust",
	"c++", "c#", "ruby", "php", "kotlin", "swift", "scala", "sql",
	"react", "angular", "vue", "node.js", "django", "flask", "spring",
	"rails", ".net", "laravel",
	"postgresql", "postgres", "mysql", "mongodb", "redis", "elasticsearch",
	"kafka", "rabbitmq", "cassandra", "dynamodb",
	"docker", "kubernetes", "terraform", "ansible", "jenkins", "git",
	"aws", "gcp", "azure", "linux", "grafana", "prometheus",
}

// wordBoundary reports whether vocab term `term` occurs in lowered text as
// a whole token, so "go" does not match "categories".
func containsTerm(lowered, term string) bool {
	if strings.ContainsAny(term, " ./+#") {
		// Multi-word or symbol-bearing terms: substring match is safe enough.
		return strings.Contains(lowered, term)
	}
	idx := 0
	for {
		i := strings.Index(lowered[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(lowered[start-1])
		afterOK := end == len(lowered) || !isWordChar(lowered[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// ExtractSkills scans text against the fixed skills vocabulary.
func ExtractSkills(text string) []string {
	return matchVocabulary(text, skillsVocabulary)
}

// ExtractTechStack scans text against the fixed technology vocabulary,
// folding the golang alias into "go".
func ExtractTechStack(text string) []string {
	found := matchVocabulary(text, techVocabulary)
	out := found[:0]
	seenGo := false
	for _, t := range found {
		if t == "go" || t == "golang" {
			if seenGo {
				continue
			}
			seenGo = true
			t = "go"
		}
		out = append(out, t)
	}
	return out
}

func matchVocabulary(text string, vocab []string) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, term := range vocab {
		if containsTerm(lowered, term) {
			found = append(found, term)
		}
	}
	return found
}

// sectionPatterns find labeled requirement/responsibility blocks. Each
// captures the text between its heading and the next heading or the end.
var (
	requirementsPattern = regexp.MustCompile(
		`(?is)(?:requirements|qualifications|what you bring|what we are looking for)\s*:?\s*\n?(.*?)(?:\n\s*\n|\n\s*(?:responsibilities|benefits|about|we offer|perks)\b|$)`)
	responsibilitiesPattern = regexp.MustCompile(
		`(?is)(?:responsibilities|what you will do|your role|duties)\s*:?\s*\n?(.*?)(?:\n\s*\n|\n\s*(?:requirements|qualifications|benefits|about|we offer|perks)\b|$)`)
)

// ExtractRequirements pulls the requirements section as bullet items.
func ExtractRequirements(text string) []string {
	return extractSection(text, requirementsPattern)
}

// ExtractResponsibilities pulls the responsibilities section as bullet items.
func ExtractResponsibilities(text string) []string {
	return extractSection(text, responsibilitiesPattern)
}

func extractSection(text string, pattern *regexp.Regexp) []string {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return splitBullets(m[1])
}

// splitBullets breaks a section into items on bullet markers or newlines.
func splitBullets(section string) []string {
	parts := regexp.MustCompile(`[\n;]+|[•·▪‣*-]\s+`).Split(section, -1)
	var items []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(p, "•·▪‣*- \t"))
		if len(p) >= 3 {
			items = append(items, p)
		}
	}
	return items
}
