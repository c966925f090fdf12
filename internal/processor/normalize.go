// Package processor turns raw job entries into normalized records:
// text cleanup, keyword classification, heuristic field extraction and a
// completeness quality score.
package processor

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// htmlEntities covers the entities that show up in practice in job boards;
// full entity decoding is not worth a parser dependency for plain-text cleanup.
var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// smartQuotes maps typographic quotes to their ASCII forms.
var smartQuotes = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
)

// CleanText strips HTML tags, decodes common entities, normalizes quotes
// and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = htmlEntities.Replace(s)
	s = smartQuotes.Replace(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
