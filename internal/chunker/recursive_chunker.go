package chunker

import (
	"regexp"
	"strings"

	"legalrag/internal/domain"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses all whitespace runs into single spaces and trims the
// ends. Every passage offset refers to positions in this normalized text.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Recursive splits normalized text into overlapping passages of at most
// Size runes each. Split points prefer sentence boundaries, then word
// boundaries, and fall back to a hard cut when a window contains neither.
// Every passage is an exact substring of the normalized text, so the input
// can be reconstructed from passages and their offsets.
type Recursive struct {
	size    int
	overlap int
}

// NewRecursive creates a splitter. size must exceed overlap; the config
// layer enforces that before construction.
func NewRecursive(size, overlap int) *Recursive {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Recursive{size: size, overlap: overlap}
}

func (c *Recursive) Chunk(document domain.Document) ([]domain.Passage, error) {
	norm := []rune(Normalize(document.Content))
	if len(norm) == 0 {
		return nil, nil
	}
	source := document.Path
	if source == "" {
		source = document.ID
	}
	if len(norm) <= c.size {
		return []domain.Passage{{
			Text:   string(norm),
			Source: source,
		}}, nil
	}

	var passages []domain.Passage
	start := 0
	idx := 0
	for start < len(norm) {
		end := start + c.size
		if end >= len(norm) {
			end = len(norm)
		} else {
			end = splitPoint(norm, start, end, c.overlap)
		}
		passages = append(passages, domain.Passage{
			Text:        string(norm[start:end]),
			Source:      source,
			StartOffset: start,
			Index:       idx,
		})
		idx++
		if end == len(norm) {
			break
		}
		start = end - c.overlap
	}
	return passages, nil
}

// splitPoint picks where to cut the window norm[start:limit]. It prefers the
// last sentence end in the window, then the last space, otherwise limit.
// The cut lands after the boundary so punctuation stays with its sentence.
// A candidate boundary must sit past the window midpoint (no sliver chunks)
// and past start+overlap, so the next passage always carries the full
// configured overlap and still makes forward progress. The hard cut at
// limit satisfies both since overlap < size.
func splitPoint(norm []rune, start, limit, overlap int) int {
	minCut := start + (limit-start)/2
	if m := start + overlap; m > minCut {
		minCut = m
	}
	lastSentence := -1
	lastSpace := -1
	for i := limit - 1; i > minCut; i-- {
		r := norm[i]
		if lastSpace < 0 && r == ' ' {
			lastSpace = i
		}
		if isSentenceEnd(r) && i+1 < limit && norm[i+1] == ' ' {
			lastSentence = i + 1
			break
		}
	}
	if lastSentence > minCut {
		return lastSentence
	}
	if lastSpace > minCut {
		return lastSpace + 1
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == ';'
}
