package pipeline

import (
	"strings"
	"unicode"
)

// span is a trimmed piece of text with rune offsets into the source
type span struct {
	start int
	end   int
}

func (s span) len() int {
	return s.end - s.start
}

func isTerminator(runes []rune, i int) bool {
	switch runes[i] {
	case '。', '！', '？', '；':
		return true
	case '.', '!', '?':
		return i+1 == len(runes) || unicode.IsSpace(runes[i+1])
	}
	return false
}

// trimmed shrinks [start, end) to exclude surrounding whitespace, ok is false if nothing is left
func trimmed(runes []rune, start, end int) (span, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return span{start: start, end: end}, end > start
}

// splitSentences splits at Latin terminators followed by whitespace and at
// full-width Chinese terminators. Closing quotes stay with their sentence.
func splitSentences(runes []rune, start, end int) []span {
	var spans []span
	from := start
	for i := start; i < end; i++ {
		if !isTerminator(runes, i) {
			continue
		}
		stop := i + 1
		for stop < end && strings.ContainsRune("”’\"')）", runes[stop]) {
			stop++
		}
		if s, ok := trimmed(runes, from, stop); ok {
			spans = append(spans, s)
		}
		from = stop
		i = stop - 1
	}
	if s, ok := trimmed(runes, from, end); ok {
		spans = append(spans, s)
	}
	return spans
}

// splitLines returns every non-blank line
func splitLines(runes []rune) []span {
	var spans []span
	from := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		if s, ok := trimmed(runes, from, i); ok {
			spans = append(spans, s)
		}
		from = i + 1
	}
	return spans
}

// splitParagraphs returns blocks separated by at least one blank line
func splitParagraphs(runes []rune) []span {
	var spans []span
	from := 0
	blank := true
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			if !unicode.IsSpace(runes[i]) {
				blank = false
			}
			continue
		}
		if blank && lineStart > from {
			if s, ok := trimmed(runes, from, lineStart); ok {
				spans = append(spans, s)
			}
			from = i + 1
		} else if blank {
			from = i + 1
		}
		lineStart = i + 1
		blank = true
	}
	if s, ok := trimmed(runes, from, len(runes)); ok {
		spans = append(spans, s)
	}
	return spans
}
