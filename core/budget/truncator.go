package budget

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/reportrag/model"
)

// Truncator selects the highest-value candidates that fit a character budget
type Truncator struct {
	density model.DensityConfig
	logger  *slog.Logger
}

// NewTruncator creates a truncator with the given density weights
func NewTruncator(density model.DensityConfig, logger *slog.Logger) *Truncator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Truncator{density: density, logger: logger}
}

// Select scores the candidates and picks them under plan.MaxTotalChars.
// requiredRegions are the regions the query named, each of them gets at
// least one chunk when even the smallest chunk per region does not fit.
func (t *Truncator) Select(candidates []*model.ScoredChunk, plan model.RetrievalPlan, requiredRegions []model.Region) *model.RetrievalResult {
	for _, c := range candidates {
		if c.CharCount <= 0 {
			c.CharCount = model.CharCount(c.Content)
		}
		c.DensityScore = Density(c.Content, c.CharCount, t.density)
		c.RankScore = c.SimilarityScore * c.DensityScore
	}

	ranked := make([]*model.ScoredChunk, len(candidates))
	copy(ranked, candidates)
	sortByRank(ranked)

	budget := plan.MaxTotalChars
	var selected []*model.ScoredChunk
	var warnings []model.Warning

	if minimum, regions := minimumViable(ranked, requiredRegions); minimum > budget {
		selected = bestPerRegion(ranked, regions)
		warnings = append(warnings, model.NewWarning(
			model.WarningBudgetInfeasible,
			"",
			fmt.Sprintf("one chunk per region needs %d characters, budget is %d", minimum, budget),
		))
		t.logger.Warn("Budget infeasible", slog.Int("minimum_chars", minimum), slog.Int("budget", budget))
	} else if plan.FairnessMode == model.FairnessEqualPerRegion {
		selected, warnings = selectEqualPerRegion(ranked, budget, requiredRegions)
		for _, w := range warnings {
			t.logger.Warn("Budget infeasible", slog.String("region", string(w.Region)), slog.Int("budget", budget))
		}
	} else {
		selected = selectGreedy(ranked, budget)
	}

	sortForOutput(selected)

	result := &model.RetrievalResult{
		Chunks:         selected,
		RegionsCovered: []model.Region{},
		CandidateCount: len(candidates),
		SelectedCount:  len(selected),
		Warnings:       warnings,
	}
	if result.Chunks == nil {
		result.Chunks = []*model.ScoredChunk{}
	}
	for _, c := range selected {
		result.TotalChars += c.CharCount
		if n := len(result.RegionsCovered); n == 0 || result.RegionsCovered[n-1] != c.Region {
			result.RegionsCovered = append(result.RegionsCovered, c.Region)
		}
	}

	return result
}

// minimumViable sums the smallest candidate of every required region that has candidates
func minimumViable(ranked []*model.ScoredChunk, requiredRegions []model.Region) (int, []model.Region) {
	smallest := map[model.Region]int{}
	for _, c := range ranked {
		if current, ok := smallest[c.Region]; !ok || c.CharCount < current {
			smallest[c.Region] = c.CharCount
		}
	}

	total := 0
	seen := map[model.Region]bool{}
	var regions []model.Region
	for _, region := range requiredRegions {
		size, ok := smallest[region]
		if !ok || seen[region] {
			continue
		}
		seen[region] = true
		regions = append(regions, region)
		total += size
	}
	return total, regions
}

func bestPerRegion(ranked []*model.ScoredChunk, regions []model.Region) []*model.ScoredChunk {
	wanted := map[model.Region]bool{}
	for _, r := range regions {
		wanted[r] = true
	}

	var selected []*model.ScoredChunk
	for _, c := range ranked {
		if wanted[c.Region] {
			selected = append(selected, c)
			delete(wanted, c.Region)
		}
	}
	return selected
}

// selectGreedy adds candidates in rank order while they fit, skipping those
// that do not
func selectGreedy(ranked []*model.ScoredChunk, budget int) []*model.ScoredChunk {
	var selected []*model.ScoredChunk
	used := 0
	for _, c := range ranked {
		if used+c.CharCount > budget {
			continue
		}
		used += c.CharCount
		selected = append(selected, c)
	}
	return selected
}

// selectEqualPerRegion first seeds every region with its best-ranked chunk
// that leaves room for the smallest chunk of each required region not yet
// seeded. Then every region fills an equal share, and the unused remainder
// is spent in rounds of at most one chunk per region.
func selectEqualPerRegion(ranked []*model.ScoredChunk, budget int, requiredRegions []model.Region) ([]*model.ScoredChunk, []model.Warning) {
	byRegion := map[model.Region][]*model.ScoredChunk{}
	var regions []model.Region
	for _, c := range ranked {
		if _, ok := byRegion[c.Region]; !ok {
			regions = append(regions, c.Region)
		}
		byRegion[c.Region] = append(byRegion[c.Region], c)
	}
	if len(regions) == 0 {
		return nil, nil
	}

	// required regions still waiting for a seed, with their smallest chunk
	reserved := map[model.Region]int{}
	for _, region := range requiredRegions {
		for _, c := range byRegion[region] {
			if current, ok := reserved[region]; !ok || c.CharCount < current {
				reserved[region] = c.CharCount
			}
		}
	}
	reserve := 0
	for _, size := range reserved {
		reserve += size
	}

	taken := map[*model.ScoredChunk]bool{}
	usedBy := map[model.Region]int{}
	var selected []*model.ScoredChunk
	var warnings []model.Warning
	used := 0
	take := func(c *model.ScoredChunk) {
		taken[c] = true
		usedBy[c.Region] += c.CharCount
		used += c.CharCount
		selected = append(selected, c)
	}

	for _, region := range regions {
		own, required := reserved[region]
		limit := budget - used - reserve
		if required {
			limit += own
		}

		var seed *model.ScoredChunk
		for _, c := range byRegion[region] {
			if c.CharCount <= limit {
				seed = c
				break
			}
		}
		if seed == nil && required {
			seed = byRegion[region][0]
			warnings = append(warnings, model.NewWarning(
				model.WarningBudgetInfeasible,
				region,
				fmt.Sprintf("no chunk of %s fits the remaining %d characters", region, max(limit, 0)),
			))
		}
		if required {
			delete(reserved, region)
			reserve -= own
		}
		if seed != nil {
			take(seed)
		}
	}

	share := budget / len(regions)
	for _, region := range regions {
		for _, c := range byRegion[region] {
			if taken[c] {
				continue
			}
			if usedBy[region]+c.CharCount > share || used+c.CharCount > budget {
				continue
			}
			take(c)
		}
	}

	// regions is in order of each region's best rank
	for added := true; added; {
		added = false
		for _, region := range regions {
			for _, c := range byRegion[region] {
				if taken[c] || used+c.CharCount > budget {
					continue
				}
				take(c)
				added = true
				break
			}
		}
	}

	return selected, warnings
}

func sortByRank(chunks []*model.ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].RankScore != chunks[j].RankScore {
			return chunks[i].RankScore > chunks[j].RankScore
		}
		return bytes.Compare(chunks[i].ID[:], chunks[j].ID[:]) < 0
	})
}

// sortForOutput restores reading order: region, source document, ordinal
func sortForOutput(chunks []*model.ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Region != b.Region {
			return model.LessRegion(a.Region, b.Region)
		}
		if a.SourceDocID != b.SourceDocID {
			return bytes.Compare(a.SourceDocID[:], b.SourceDocID[:]) < 0
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
