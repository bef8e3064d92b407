package assemble

import (
	"strings"

	"github.com/siherrmann/reportrag/model"
)

const (
	// EmptyContext is rendered when nothing was selected
	EmptyContext = "No relevant information found."
	// GapMarker separates chunks of one region that are not contiguous in their report
	GapMarker = "[...]"
)

// Assemble renders the selected chunks as context text. Chunks are expected
// in output order (region, source document, ordinal). Each region starts with
// a "=== <Region> ===" header.
func Assemble(result *model.RetrievalResult) string {
	if result == nil || len(result.Chunks) == 0 {
		return EmptyContext
	}

	var sections []string
	var section strings.Builder
	var previous *model.ScoredChunk
	for _, c := range result.Chunks {
		content := CollapseWhitespace(c.Content)
		if content == "" {
			continue
		}

		if previous == nil || previous.Region != c.Region {
			if section.Len() > 0 {
				sections = append(sections, section.String())
				section.Reset()
			}
			section.WriteString(Header(c.Region))
		} else if isGap(previous, c) {
			section.WriteString("\n\n")
			section.WriteString(GapMarker)
		}

		section.WriteString("\n\n")
		section.WriteString(content)
		previous = c
	}
	if section.Len() > 0 {
		sections = append(sections, section.String())
	}

	if len(sections) == 0 {
		return EmptyContext
	}
	return strings.Join(sections, "\n\n")
}

// Header returns the section header of a region
func Header(region model.Region) string {
	return "=== " + string(region) + " ==="
}

// CollapseWhitespace replaces every run of whitespace with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isGap(previous, current *model.ScoredChunk) bool {
	return previous.SourceDocID != current.SourceDocID || current.Ordinal != previous.Ordinal+1
}
