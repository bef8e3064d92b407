package budget

import (
	"strings"
	"unicode"

	"github.com/siherrmann/reportrag/model"
)

// Density scores how much information a chunk carries. It mixes a capped
// length term with the share of distinct tokens.
func Density(content string, charCount int, config model.DensityConfig) float64 {
	if charCount <= 0 {
		charCount = model.CharCount(content)
	}

	length := 0.0
	if config.LengthCap > 0 {
		length = float64(min(charCount, config.LengthCap)) / float64(config.LengthCap)
	}

	richness := 0.0
	tokens := Tokens(content)
	if len(tokens) > 0 {
		distinct := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			distinct[token] = struct{}{}
		}
		richness = float64(len(distinct)) / float64(len(tokens))
	}

	return config.LengthWeight*length + config.RichnessWeight*richness
}

// Tokens splits text into case-folded tokens. Every Han character is a token
// of its own, other letters and digits form words.
func Tokens(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
