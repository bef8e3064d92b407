package retrieval

import "github.com/siherrmann/reportrag/model"

// subSearch is one similarity search of a query, a nil region is the global search
type subSearch struct {
	region *model.Region
	k      int
}

func (s subSearch) key() model.Region {
	if s.region == nil {
		return ""
	}
	return *s.region
}

// planSearches expands an intent into its similarity searches:
// one per named region, one per known region for AllRegions and a single
// unfiltered search for Topical.
func planSearches(intent model.QueryIntent, plan model.RetrievalPlan) []subSearch {
	k := plan.PerRegionCandidateCount

	var regions []model.Region
	switch intent.Kind {
	case model.IntentSingleRegion, model.IntentMultiRegion, model.IntentComparison:
		regions = uniqueRegions(intent.Regions)
	case model.IntentAllRegions:
		regions = model.Regions()
	}

	if len(regions) == 0 {
		return []subSearch{{region: nil, k: k}}
	}

	searches := make([]subSearch, len(regions))
	for i := range regions {
		region := regions[i]
		searches[i] = subSearch{region: &region, k: k}
	}
	return searches
}

func uniqueRegions(regions []model.Region) []model.Region {
	seen := make(map[model.Region]bool, len(regions))
	unique := make([]model.Region, 0, len(regions))
	for _, r := range regions {
		if seen[r] {
			continue
		}
		seen[r] = true
		unique = append(unique, r)
	}
	return unique
}
