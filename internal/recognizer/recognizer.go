// Package recognizer extracts categorized named entities from legal text
// with rules tuned to Indian court documents: honorific-prefixed person
// names, institutional suffixes, date shapes and jurisdiction phrases. It
// is an optional collaborator; the engine runs without it.
package recognizer

import (
	"regexp"
	"sort"
	"strings"
)

type Recognizer struct {
	personRe   *regexp.Regexp
	orgRe      *regexp.Regexp
	dateRes    []*regexp.Regexp
	locationRe *regexp.Regexp
}

func New() *Recognizer {
	return &Recognizer{
		personRe: regexp.MustCompile(
			`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.|Justice|Judge|Shri|Smt\.|Advocate)\s+[A-Z][A-Za-z.]*(?:\s+[A-Z][A-Za-z.]*){0,3}`),
		orgRe: regexp.MustCompile(
			`\b(?:[A-Z][A-Za-z&.]*\s+){0,4}(?:Court|Tribunal|Commission|Corporation|Company|Ltd\.?|Bank|Authority|Board|Ministry|Union|Society|Trust)\b`),
		dateRes: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)[,]?\s+\d{4}\b`),
			regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`),
			regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		},
		locationRe: regexp.MustCompile(
			`\b(?:High Court of|State of|Union of|City of|District of)\s+[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)?`),
	}
}

// Entities holds one deduplicated, sorted list per category. Empty
// categories are empty slices, never nil, so callers can serialize the
// result without nil checks.
type Entities struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Locations     []string `json:"locations"`
}

func (r *Recognizer) Recognize(text string) Entities {
	return Entities{
		Persons:       dedupe(r.personRe.FindAllString(text, -1)),
		Organizations: dedupe(r.orgRe.FindAllString(text, -1)),
		Dates:         r.dates(text),
		Locations:     dedupe(r.locationRe.FindAllString(text, -1)),
	}
}

func (r *Recognizer) dates(text string) []string {
	var all []string
	for _, re := range r.dateRes {
		all = append(all, re.FindAllString(text, -1)...)
	}
	return dedupe(all)
}

func dedupe(matches []string) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
