// Package role infers job titles from email signature blocks.
package role

import (
	"regexp"
	"strings"

	"github.com/contactkit/mailharvest/internal/metrics"
)

const (
	// signatureLines is the trailing window assumed to hold the signature.
	signatureLines = 15

	// Title length bounds. Shorter matches are noise fragments, longer
	// ones run-on paragraphs.
	minTitleLen = 5
	maxTitleLen = 50
)

// htmlTag matches one angle-bracket-delimited span for markup stripping.
var htmlTag = regexp.MustCompile(`<[^<]+?>`)

// titlePatterns are the fixed signature heuristics, tried in order after
// the sender-name separator pattern. Order is the tie-break rule: the
// first surviving match wins.
var titlePatterns = []*regexp.Regexp{
	// "Title at Company" / "Title @ Company"
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,4}(?:\s+at|@)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})`),
	// "Role of/for Department"
	regexp.MustCompile(`([A-Z][a-z]+\s+(?:of|for)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})`),
	// Seniority/role keyword followed by capitalized words
	regexp.MustCompile(`((?:Senior|Junior|Chief|Assistant|Associate|Lead|Principal|Director|Manager|Officer|President|CEO|CTO|CFO|COO|VP|Head|Founder|Owner|Specialist|Supervisor|Coordinator|Analyst|Engineer|Developer|Architect|Designer|Consultant|Executive|Administrator|Technician)(?:\s+[A-Z][a-z]+){1,4})`),
	// "Director/Manager/Head/Chief/Officer of <department>"
	regexp.MustCompile(`((?:Director|Manager|Head|Chief|Officer)\s+of\s+(?:[A-Z][a-z]+\s*){1,5})`),
	// Functional area + role noun, e.g. "Marketing Manager"
	regexp.MustCompile(`((?:Marketing|Sales|Finance|HR|Operations|IT|Product|Software|Network|Data|AI|Business|Project|Program|Customer|Research|Quality|Technical|Support)\s+(?:Manager|Director|Specialist|Analyst|Engineer|Coordinator|Lead|Supervisor|Consultant|Executive))`),
	// "Title, Organization"
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}),\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,5})`),
}

// Cache memoizes extraction results per lower-cased email for the
// duration of one scan pass. Cached empty results count: a second call
// for the same address returns the cached value regardless of body.
type Cache map[string]string

// NewCache returns an empty per-run cache.
func NewCache() Cache { return make(Cache) }

// Extractor infers roles from signature text. One Extractor serves one
// scan pass; its cache is injected so the run owns the lifetime.
type Extractor struct {
	cache Cache
}

// New builds an Extractor around a per-run cache.
func New(cache Cache) *Extractor {
	if cache == nil {
		cache = NewCache()
	}
	return &Extractor{cache: cache}
}

// Extract infers a job title for email from the trailing signature
// window of body. Returns "" when nothing plausible is found. The result
// is memoized by lower-cased email.
func (e *Extractor) Extract(email, senderName, body string) string {
	key := strings.ToLower(email)
	if cached, ok := e.cache[key]; ok {
		metrics.RoleCacheHits.Inc()
		return cached
	}

	role := extract(senderName, body)
	e.cache[key] = role
	return role
}

func extract(senderName, body string) string {
	if body == "" {
		return ""
	}

	text := body
	if looksLikeMarkup(text) {
		text = htmlTag.ReplaceAllString(text, " ")
	}

	window := signatureWindow(text)

	var candidates []string
	collect := func(re *regexp.Regexp) {
		for _, match := range re.FindAllStringSubmatch(window, -1) {
			for _, group := range match[1:] {
				trimmed := strings.TrimSpace(group)
				if len(trimmed) > minTitleLen && len(trimmed) < maxTitleLen {
					candidates = append(candidates, trimmed)
				}
			}
		}
	}

	// "<SenderName> | <title>" runs first; it is the strongest signal.
	if senderName != "" {
		sep, err := regexp.Compile(regexp.QuoteMeta(senderName) + `\s*\|\s*([^,\n|]{3,50})`)
		if err == nil {
			collect(sep)
		}
	}
	for _, re := range titlePatterns {
		collect(re)
	}

	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func looksLikeMarkup(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "<html") || strings.Contains(strings.ToLower(s), "<body")
}

// signatureWindow returns the last few lines of text, or all of it when
// shorter than the window.
func signatureWindow(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= signatureLines {
		return text
	}
	return strings.Join(lines[len(lines)-signatureLines:], "\n")
}
