package classify

import (
	"testing"

	"github.com/siherrmann/reportrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warningKinds(c Classification) []model.WarningKind {
	kinds := []model.WarningKind{}
	for _, w := range c.Warnings {
		kinds = append(kinds, w.Kind)
	}
	return kinds
}

func TestClassify(t *testing.T) {
	t.Run("Single region in Chinese", func(t *testing.T) {
		c := Classify("河南省2024年的经济增长目标是多少？")
		assert.Equal(t, model.IntentSingleRegion, c.Intent.Kind, "Expected single region intent")
		assert.Equal(t, []model.Region{model.RegionHenan}, c.Intent.Regions, "Expected Henan")
		assert.Empty(t, c.Warnings, "Expected no warnings")
	})

	t.Run("Single region in English with possessive", func(t *testing.T) {
		c := Classify("What is Henan's GDP growth target?")
		assert.Equal(t, model.SingleRegionIntent(model.RegionHenan), c.Intent, "Expected Henan single region")
	})

	t.Run("Comparison of two regions", func(t *testing.T) {
		c := Classify("Compare Zhejiang and Jiangsu on digital economy")
		assert.Equal(t, model.IntentComparison, c.Intent.Kind, "Expected comparison intent")
		assert.Equal(t, []model.Region{model.RegionJiangsu, model.RegionZhejiang}, c.Intent.Regions, "Expected canonical order")
		assert.Empty(t, c.Warnings, "Expected no warnings")
	})

	t.Run("Comparison in Chinese", func(t *testing.T) {
		c := Classify("对比广东和浙江的数字经济政策")
		assert.Equal(t, model.IntentComparison, c.Intent.Kind, "Expected comparison intent")
		assert.Equal(t, []model.Region{model.RegionZhejiang, model.RegionGuangdong}, c.Intent.Regions, "Expected canonical order")
	})

	t.Run("Versus abbreviation is a comparison marker", func(t *testing.T) {
		c := Classify("Beijing vs. Shanghai housing policy")
		assert.Equal(t, model.IntentComparison, c.Intent.Kind, "Expected comparison intent")
	})

	t.Run("Marker inside another word does not count", func(t *testing.T) {
		c := Classify("Beijing and Shanghai vsync policies")
		assert.Equal(t, model.IntentMultiRegion, c.Intent.Kind, "Expected multi region intent")
	})

	t.Run("Several regions without marker", func(t *testing.T) {
		c := Classify("新能源汽车 in Shanghai, Guangdong and Anhui")
		assert.Equal(t, model.IntentMultiRegion, c.Intent.Kind, "Expected multi region intent")
		assert.Equal(t, []model.Region{model.RegionShanghai, model.RegionAnhui, model.RegionGuangdong}, c.Intent.Regions, "Expected canonical order")
	})

	t.Run("Duplicate mentions collapse", func(t *testing.T) {
		c := Classify("Henan 河南 henan")
		assert.Equal(t, model.SingleRegionIntent(model.RegionHenan), c.Intent, "Expected one region")
	})

	t.Run("All regions marker", func(t *testing.T) {
		for _, text := range []string{
			"What are the growth targets of all provinces?",
			"Every province's education budget",
			"各省的粮食产量目标",
			"全国31省的就业目标",
		} {
			c := Classify(text)
			assert.Equal(t, model.AllRegionsIntent(), c.Intent, "Expected all regions intent for %q", text)
		}
	})

	t.Run("Topical query", func(t *testing.T) {
		c := Classify("Which provincial reports mention hydrogen energy?")
		assert.Equal(t, model.TopicalIntent(), c.Intent, "Expected topical intent")
		assert.Empty(t, c.Warnings, "Expected no warnings")
	})

	t.Run("Empty query is topical", func(t *testing.T) {
		c := Classify("   ")
		assert.Equal(t, model.TopicalIntent(), c.Intent, "Expected topical intent")
	})

	t.Run("Comparison with a single region is ambiguous", func(t *testing.T) {
		c := Classify("Compare Henan's targets with last year")
		assert.Equal(t, model.SingleRegionIntent(model.RegionHenan), c.Intent, "Expected single region fallback")
		assert.Equal(t, []model.WarningKind{model.WarningClassificationAmbiguous}, warningKinds(c), "Expected ambiguity warning")
	})

	t.Run("Comparison beats all regions marker", func(t *testing.T) {
		c := Classify("Compare Hubei and Hunan with all provinces")
		assert.Equal(t, model.IntentComparison, c.Intent.Kind, "Expected comparison intent")
		assert.Contains(t, warningKinds(c), model.WarningClassificationAmbiguous, "Expected ambiguity warning")
	})

	t.Run("Ambiguous alias is reported and ignored", func(t *testing.T) {
		c := Classify("Mongolia coal output")
		assert.Equal(t, model.TopicalIntent(), c.Intent, "Expected topical intent")
		assert.Equal(t, []model.WarningKind{model.WarningRegionUnknown}, warningKinds(c), "Expected region unknown warning")
	})

	t.Run("Inner Mongolia is not ambiguous", func(t *testing.T) {
		c := Classify("Inner Mongolia coal output")
		assert.Equal(t, model.SingleRegionIntent(model.RegionInnerMongolia), c.Intent, "Expected Inner Mongolia")
		assert.Empty(t, c.Warnings, "Expected no warnings")
	})

	t.Run("Unknown province is reported", func(t *testing.T) {
		c := Classify("What does Atlantis province plan for 2025?")
		assert.Equal(t, model.TopicalIntent(), c.Intent, "Expected topical intent")
		require.Len(t, c.Warnings, 1, "Expected one warning")
		assert.Equal(t, model.WarningRegionUnknown, c.Warnings[0].Kind, "Expected region unknown warning")
		assert.Contains(t, c.Warnings[0].Message, "Atlantis", "Expected the unknown name in the message")
	})

	t.Run("Region order in the text does not matter", func(t *testing.T) {
		a := Classify("Compare Guangdong and Beijing")
		b := Classify("Compare Beijing and Guangdong")
		assert.Equal(t, a.Intent, b.Intent, "Expected identical intents")
	})
}

func TestFromHint(t *testing.T) {
	t.Run("Single hint", func(t *testing.T) {
		c, ok := FromHint([]model.Region{"henan"})
		require.True(t, ok, "Expected hint to resolve")
		assert.Equal(t, model.SingleRegionIntent(model.RegionHenan), c.Intent, "Expected Henan")
	})

	t.Run("Several hints are sorted and deduplicated", func(t *testing.T) {
		c, ok := FromHint([]model.Region{model.RegionGuangdong, "北京", model.RegionGuangdong})
		require.True(t, ok, "Expected hint to resolve")
		assert.Equal(t, model.MultiRegionIntent([]model.Region{model.RegionBeijing, model.RegionGuangdong}), c.Intent, "Expected multi region intent")
	})

	t.Run("Unknown hints are dropped with a warning", func(t *testing.T) {
		c, ok := FromHint([]model.Region{"Atlantis", model.RegionHainan})
		require.True(t, ok, "Expected hint to resolve")
		assert.Equal(t, model.SingleRegionIntent(model.RegionHainan), c.Intent, "Expected Hainan")
		assert.Equal(t, []model.WarningKind{model.WarningRegionUnknown}, warningKinds(c), "Expected region unknown warning")
	})

	t.Run("Only unknown hints do not resolve", func(t *testing.T) {
		c, ok := FromHint([]model.Region{"Atlantis"})
		assert.False(t, ok, "Expected hint not to resolve")
		assert.Len(t, c.Warnings, 1, "Expected warning to be kept")
	})
}

func TestClassifier(t *testing.T) {
	t.Run("Cached classification equals direct classification", func(t *testing.T) {
		classifier := NewClassifier(8)
		first := classifier.Classify("Compare Zhejiang and Jiangsu")
		second := classifier.Classify("  Compare Zhejiang and Jiangsu ")
		assert.Equal(t, Classify("Compare Zhejiang and Jiangsu"), first, "Expected direct result")
		assert.Equal(t, first, second, "Expected cached result")
		assert.Equal(t, 1, classifier.cache.Len(), "Expected one cache entry")
	})

	t.Run("Mutating a result does not affect the cache", func(t *testing.T) {
		classifier := NewClassifier(8)
		first := classifier.Classify("Henan and Hubei")
		first.Intent.Regions[0] = model.RegionTibet
		second := classifier.Classify("Henan and Hubei")
		assert.Equal(t, model.RegionHenan, second.Intent.Regions[0], "Expected cached regions untouched")
	})

	t.Run("Zero size disables the cache", func(t *testing.T) {
		classifier := NewClassifier(0)
		assert.Nil(t, classifier.cache, "Expected no cache")
		assert.Equal(t, model.IntentSingleRegion, classifier.Classify("Hainan tourism").Intent.Kind, "Expected single region intent")
	})
}
