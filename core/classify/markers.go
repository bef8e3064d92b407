package classify

import (
	"strings"
	"unicode"
)

var comparisonMarkers = markerSet{
	latin: [][]string{
		{"compare"}, {"compared"}, {"comparing"}, {"comparison"},
		{"versus"}, {"vs"},
		{"difference", "between"}, {"differences", "between"},
	},
	han: []string{"对比", "比较", "差异", "区别"},
}

var allRegionsMarkers = markerSet{
	latin: [][]string{
		{"each", "province"}, {"every", "province"}, {"all", "provinces"},
		{"each", "region"}, {"every", "region"}, {"all", "regions"},
	},
	han: []string{"所有省份", "全部省份", "各省", "31省", "全国"},
}

// markerSet holds keyword markers. Latin markers are token sequences
// matched on word boundaries, Han markers are matched as substrings.
type markerSet struct {
	latin [][]string
	han   []string
}

func (m markerSet) in(text string, tokens []string) bool {
	for _, marker := range m.han {
		if strings.Contains(text, marker) {
			return true
		}
	}
	for i := range tokens {
		for _, marker := range m.latin {
			if hasPrefix(tokens[i:], marker) {
				return true
			}
		}
	}
	return false
}

func hasPrefix(tokens []string, marker []string) bool {
	if len(marker) > len(tokens) {
		return false
	}
	for i, word := range marker {
		if tokens[i] != word {
			return false
		}
	}
	return true
}

// latinTokens splits text into lower-case words, Han characters act as separators
func latinTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r)) || unicode.Is(unicode.Han, r)
	})
}
