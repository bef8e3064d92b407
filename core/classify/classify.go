package classify

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/siherrmann/reportrag/model"
)

// Classification is the outcome of classifying a query text
type Classification struct {
	Intent   model.QueryIntent
	Regions  []model.Region
	Warnings []model.Warning
}

// Classify derives the intent of a query. First match wins:
// comparison marker with two or more regions, two or more regions,
// all-regions marker, exactly one region, otherwise topical.
// It never fails, problems are reported as warnings.
func Classify(text string) Classification {
	match := model.MatchRegions(text)
	regions := slices.Clone(match.Regions)
	sort.SliceStable(regions, func(i, j int) bool { return model.LessRegion(regions[i], regions[j]) })

	var warnings []model.Warning
	for _, alias := range match.Ambiguous {
		reason := model.AmbiguousRegionAliases[strings.ToLower(alias)]
		warnings = append(warnings, model.NewWarning(
			model.WarningRegionUnknown, "",
			fmt.Sprintf("%q is ambiguous (%s) and was ignored", alias, reason),
		))
	}
	for _, name := range match.Unknown {
		warnings = append(warnings, model.NewWarning(
			model.WarningRegionUnknown, "",
			fmt.Sprintf("%q is not a known province and was ignored", name+" province"),
		))
	}

	tokens := latinTokens(text)
	comparison := comparisonMarkers.in(text, tokens)
	allRegions := allRegionsMarkers.in(text, tokens)

	ambiguous := func(format string, args ...interface{}) {
		warnings = append(warnings, model.NewWarning(model.WarningClassificationAmbiguous, "", fmt.Sprintf(format, args...)))
	}

	var intent model.QueryIntent
	switch {
	case comparison && len(regions) >= 2:
		intent = model.ComparisonIntent(regions)
		if allRegions {
			ambiguous("all-regions marker ignored, comparing %d named regions", len(regions))
		}
	case len(regions) >= 2:
		intent = model.MultiRegionIntent(regions)
		if allRegions {
			ambiguous("all-regions marker ignored, %d regions are named", len(regions))
		}
	case allRegions:
		intent = model.AllRegionsIntent()
		if comparison {
			ambiguous("comparison marker without two named regions, treated as all regions")
		}
		if len(regions) == 1 {
			ambiguous("region %s ignored in favour of the all-regions marker", regions[0])
		}
	case len(regions) == 1:
		intent = model.SingleRegionIntent(regions[0])
		if comparison {
			ambiguous("comparison marker with only one region (%s)", regions[0])
		}
	default:
		intent = model.TopicalIntent()
		if comparison {
			ambiguous("comparison marker without any named region")
		}
	}

	return Classification{Intent: intent, Regions: regions, Warnings: warnings}
}

// FromHint builds the classification of an explicit region hint. Unknown
// entries are ignored with a warning. It reports false when no hint entry
// is a known region.
func FromHint(hint []model.Region) (Classification, bool) {
	var warnings []model.Warning
	seen := map[model.Region]bool{}
	var regions []model.Region
	for _, h := range hint {
		region, ok := model.ParseRegion(string(h))
		if !ok {
			warnings = append(warnings, model.NewWarning(
				model.WarningRegionUnknown, h,
				fmt.Sprintf("region hint %q is not a known region and was ignored", h),
			))
			continue
		}
		if !seen[region] {
			seen[region] = true
			regions = append(regions, region)
		}
	}
	sort.SliceStable(regions, func(i, j int) bool { return model.LessRegion(regions[i], regions[j]) })

	switch len(regions) {
	case 0:
		return Classification{Warnings: warnings}, false
	case 1:
		return Classification{Intent: model.SingleRegionIntent(regions[0]), Regions: regions, Warnings: warnings}, true
	default:
		return Classification{Intent: model.MultiRegionIntent(regions), Regions: regions, Warnings: warnings}, true
	}
}

// Classifier memoizes Classify for repeated query texts
type Classifier struct {
	cache *lru.Cache[string, Classification]
}

// NewClassifier creates a classifier caching up to cacheSize texts, zero disables the cache
func NewClassifier(cacheSize int) *Classifier {
	c := &Classifier{}
	if cacheSize > 0 {
		c.cache, _ = lru.New[string, Classification](cacheSize)
	}
	return c
}

// Classify returns the classification of text, from the cache if possible
func (c *Classifier) Classify(text string) Classification {
	key := strings.TrimSpace(text)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached.clone()
		}
	}

	classification := Classify(key)
	if c.cache != nil {
		c.cache.Add(key, classification.clone())
	}
	return classification
}

func (c Classification) clone() Classification {
	c.Intent.Regions = slices.Clone(c.Intent.Regions)
	c.Regions = slices.Clone(c.Regions)
	c.Warnings = slices.Clone(c.Warnings)
	return c
}
