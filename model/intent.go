package model

import (
	"fmt"
	"strings"
)

// IntentKind is the shape of a query
type IntentKind string

const (
	IntentSingleRegion IntentKind = "single_region"
	IntentMultiRegion  IntentKind = "multi_region"
	IntentAllRegions   IntentKind = "all_regions"
	IntentComparison   IntentKind = "comparison"
	IntentTopical      IntentKind = "topical"
)

// IntentKinds lists every intent kind, each must have a strategy entry
var IntentKinds = []IntentKind{
	IntentSingleRegion,
	IntentMultiRegion,
	IntentAllRegions,
	IntentComparison,
	IntentTopical,
}

// Valid reports whether k is one of the five intent kinds
func (k IntentKind) Valid() bool {
	for _, kind := range IntentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// QueryIntent is a tagged variant, Regions is only set for the region anchored kinds
type QueryIntent struct {
	Kind    IntentKind `json:"kind"`
	Regions []Region   `json:"regions,omitempty"`
}

func SingleRegionIntent(region Region) QueryIntent {
	return QueryIntent{Kind: IntentSingleRegion, Regions: []Region{region}}
}

func MultiRegionIntent(regions []Region) QueryIntent {
	return QueryIntent{Kind: IntentMultiRegion, Regions: regions}
}

func AllRegionsIntent() QueryIntent {
	return QueryIntent{Kind: IntentAllRegions}
}

func ComparisonIntent(regions []Region) QueryIntent {
	return QueryIntent{Kind: IntentComparison, Regions: regions}
}

func TopicalIntent() QueryIntent {
	return QueryIntent{Kind: IntentTopical}
}

func (i QueryIntent) String() string {
	if len(i.Regions) == 0 {
		return string(i.Kind)
	}
	names := make([]string, len(i.Regions))
	for j, r := range i.Regions {
		names[j] = string(r)
	}
	return fmt.Sprintf("%s(%s)", i.Kind, strings.Join(names, ", "))
}
