package model

import (
	"sort"
	"strings"
	"unicode"
)

// RegionMatch is the outcome of scanning free text for region names
type RegionMatch struct {
	// Regions in order of first appearance, deduplicated
	Regions []Region
	// Ambiguous holds alias tokens that could not be resolved to one region
	Ambiguous []string
	// Unknown holds "<Name> province" mentions that are not in the region table
	Unknown []string
}

type latinPhrase struct {
	tokens []string
	region Region
}

type mention struct {
	region   Region
	position int
}

var (
	hanNames     = map[string]Region{}
	hanMaxLen    int
	latinPhrases []latinPhrase
)

// Rivers and lakes whose names run into a region name, as in 淮河南岸 or
// 洞庭湖北部. They are skipped whole before region names are tried.
var waterBodies = map[string]bool{
	"黄河": true, "淮河": true, "海河": true, "渭河": true, "汾河": true, "辽河": true,
	"运河": true, "长江": true, "珠江": true, "湘江": true, "汉江": true, "赣江": true,
	"闽江": true, "岷江": true, "漓江": true, "钱塘江": true, "嘉陵江": true, "松花江": true,
	"鸭绿江": true, "太湖": true, "巢湖": true, "洪湖": true, "洞庭湖": true, "鄱阳湖": true,
}

const waterMaxLen = 3

// Words that commonly precede "province" without naming one.
var provinceQualifiers = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true, "which": true,
	"each": true, "every": true, "all": true, "per": true, "one": true, "any": true,
	"other": true, "another": true, "same": true, "home": true, "whole": true,
	"entire": true, "given": true, "their": true, "its": true, "our": true, "your": true,
	"coastal": true, "inland": true, "border": true, "neighboring": true, "neighbouring": true,
	"northern": true, "southern": true, "eastern": true, "western": true, "central": true,
	"poorest": true, "richest": true, "largest": true, "smallest": true, "each's": true,
}

func init() {
	for _, info := range regionTable {
		hanNames[info.Chinese] = info.Region
		if l := len([]rune(info.Chinese)); l > hanMaxLen {
			hanMaxLen = l
		}
		names := append([]string{string(info.Region)}, info.Aliases...)
		for _, name := range names {
			latinPhrases = append(latinPhrases, latinPhrase{
				tokens: strings.Fields(strings.ToLower(name)),
				region: info.Region,
			})
		}
	}
	// Longest phrase first so "Inner Mongolia" wins over a bare "Mongolia".
	sort.SliceStable(latinPhrases, func(i, j int) bool {
		return len(latinPhrases[i].tokens) > len(latinPhrases[j].tokens)
	})
}

// MatchRegions finds every region named in text. Latin names match whole
// tokens case-insensitively, Han names match as leftmost-longest substrings.
func MatchRegions(text string) RegionMatch {
	runes := []rune(text)
	mentions := matchHan(runes)

	latinMentions, ambiguous, unknown := matchLatin(runes)
	mentions = append(mentions, latinMentions...)
	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].position < mentions[j].position
	})

	match := RegionMatch{Ambiguous: ambiguous, Unknown: unknown}
	seen := map[Region]bool{}
	for _, m := range mentions {
		if seen[m.region] {
			continue
		}
		seen[m.region] = true
		match.Regions = append(match.Regions, m.region)
	}
	return match
}

// DetectRegion guesses the region of a report from its file name, falling
// back to the beginning of its content.
func DetectRegion(name string, content string) (Region, bool) {
	if match := MatchRegions(name); len(match.Regions) > 0 {
		return match.Regions[0], true
	}
	head := []rune(content)
	if len(head) > 200 {
		head = head[:200]
	}
	if match := MatchRegions(string(head)); len(match.Regions) > 0 {
		return match.Regions[0], true
	}
	return "", false
}

func matchHan(runes []rune) []mention {
	var mentions []mention
	for i := 0; i < len(runes); {
		if !unicode.Is(unicode.Han, runes[i]) {
			i++
			continue
		}
		if l := waterBodyAt(runes, i); l > 0 {
			i += l
			continue
		}
		matched := 0
		for l := hanMaxLen; l >= 2; l-- {
			if i+l > len(runes) {
				continue
			}
			if region, ok := hanNames[string(runes[i:i+l])]; ok {
				mentions = append(mentions, mention{region: region, position: i})
				matched = l
				break
			}
		}
		if matched > 0 {
			i += matched
		} else {
			i++
		}
	}
	return mentions
}

func waterBodyAt(runes []rune, i int) int {
	for l := waterMaxLen; l >= 2; l-- {
		if i+l <= len(runes) && waterBodies[string(runes[i:i+l])] {
			return l
		}
	}
	return 0
}

type token struct {
	lower    string
	raw      string
	position int
}

func tokenizeLatin(runes []rune) []token {
	var tokens []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			raw := string(runes[start:end])
			tokens = append(tokens, token{lower: strings.ToLower(raw), raw: raw, position: start})
			start = -1
		}
	}
	for i, r := range runes {
		if (unicode.IsLetter(r) || unicode.IsDigit(r)) && !unicode.Is(unicode.Han, r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(runes))
	return tokens
}

func matchLatin(runes []rune) (mentions []mention, ambiguous []string, unknown []string) {
	tokens := tokenizeLatin(runes)
	for i := 0; i < len(tokens); {
		if n, region := matchPhrase(tokens[i:]); n > 0 {
			mentions = append(mentions, mention{region: region, position: tokens[i].position})
			i += n
			continue
		}

		tok := tokens[i]
		if _, ok := AmbiguousRegionAliases[tok.lower]; ok {
			ambiguous = append(ambiguous, tok.raw)
		} else if i+1 < len(tokens) && isProvinceWord(tokens[i+1].lower) && looksLikeName(tok) {
			unknown = append(unknown, tok.raw)
		}
		i++
	}
	return mentions, ambiguous, unknown
}

func matchPhrase(tokens []token) (int, Region) {
	for _, phrase := range latinPhrases {
		if len(phrase.tokens) > len(tokens) {
			continue
		}
		ok := true
		for j, want := range phrase.tokens {
			if tokens[j].lower != want {
				ok = false
				break
			}
		}
		if ok {
			return len(phrase.tokens), phrase.region
		}
	}
	return 0, ""
}

func isProvinceWord(s string) bool {
	return s == "province" || s == "provinces"
}

func looksLikeName(tok token) bool {
	if provinceQualifiers[tok.lower] {
		return false
	}
	first := []rune(tok.raw)[0]
	return unicode.IsUpper(first)
}
