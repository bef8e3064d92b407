package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryVector = []float32{0.1, 0.2, 0.3}

func seedRegions(store *fakeStore, searcher *fakeSearcher, regions []model.Region, perRegion int) map[model.Region][]*model.Chunk {
	seeded := map[model.Region][]*model.Chunk{}
	for r, region := range regions {
		doc := uuid.New()
		for i := 0; i < perRegion; i++ {
			chunk := store.add(region, doc, i, string(region)+" report paragraph")
			searcher.scores[chunk.ID] = 0.9 - float64(r)*0.01 - float64(i)*0.05
			seeded[region] = append(seeded[region], chunk)
		}
	}
	return seeded
}

func TestEngineRetrieve(t *testing.T) {
	plans := model.DefaultStrategyTable()

	t.Run("Single region issues exactly one region-scoped search", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionHenan, model.RegionHubei}, 3)
		engine := NewEngine(searcher, store, 4, nil)

		candidates, report, err := engine.Retrieve(context.Background(), queryVector, model.SingleRegionIntent(model.RegionHenan), plans[model.IntentSingleRegion])

		require.NoError(t, err, "Expected Retrieve to not return an error")
		require.Equal(t, 1, searcher.callCount())
		assert.Equal(t, 30, searcher.calls[0].k)
		assert.Equal(t, model.RegionHenan, *searcher.calls[0].region)
		require.Len(t, candidates, 3)
		for _, c := range candidates {
			assert.Equal(t, model.RegionHenan, c.Region)
			assert.Equal(t, model.RetrievalMethodVector, c.RetrievalMethod)
		}
		assert.Equal(t, 3, report.PerRegionReturned[model.RegionHenan])
		assert.Empty(t, report.Warnings)
	})

	t.Run("Comparison searches each named region", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionGuangdong, model.RegionJiangsu, model.RegionZhejiang}, 2)
		engine := NewEngine(searcher, store, 4, nil)

		intent := model.ComparisonIntent([]model.Region{model.RegionGuangdong, model.RegionJiangsu})
		candidates, _, err := engine.Retrieve(context.Background(), queryVector, intent, plans[model.IntentComparison])

		require.NoError(t, err)
		assert.Equal(t, []model.Region{model.RegionJiangsu, model.RegionGuangdong}, searcher.searchedRegions())
		assert.Len(t, candidates, 4)
		for _, c := range candidates {
			assert.NotEqual(t, model.RegionZhejiang, c.Region)
		}
	})

	t.Run("All regions searches every known region", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionBeijing, model.RegionXinjiang}, 1)
		engine := NewEngine(searcher, store, 8, nil)

		candidates, report, err := engine.Retrieve(context.Background(), queryVector, model.AllRegionsIntent(), plans[model.IntentAllRegions])

		require.NoError(t, err)
		assert.Equal(t, 31, searcher.callCount())
		for _, call := range searcher.calls {
			assert.Equal(t, 8, call.k)
		}
		assert.Len(t, candidates, 2)
		assert.Len(t, report.ZeroResultRegions, 29)
	})

	t.Run("Topical issues one global search", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionShanghai, model.RegionTibet}, 2)
		engine := NewEngine(searcher, store, 4, nil)

		candidates, report, err := engine.Retrieve(context.Background(), queryVector, model.TopicalIntent(), plans[model.IntentTopical])

		require.NoError(t, err)
		require.Equal(t, 1, searcher.callCount())
		assert.Nil(t, searcher.calls[0].region)
		assert.Len(t, candidates, 4)
		assert.Equal(t, 4, report.PerRegionReturned[""])
	})

	t.Run("Output is sorted by similarity then id", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionHenan}, 5)
		engine := NewEngine(searcher, store, 4, nil)

		candidates, _, err := engine.Retrieve(context.Background(), queryVector, model.SingleRegionIntent(model.RegionHenan), plans[model.IntentSingleRegion])

		require.NoError(t, err)
		for i := 1; i < len(candidates); i++ {
			assert.GreaterOrEqual(t, candidates[i-1].SimilarityScore, candidates[i].SimilarityScore)
		}
	})

	t.Run("Duplicate hits keep the highest score", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		shared := store.add(model.RegionHenan, uuid.New(), 0, "shared")
		searcher.fixed[model.RegionHenan] = []model.SearchHit{{ChunkID: shared.ID, Score: 0.4}}
		searcher.fixed[model.RegionHubei] = []model.SearchHit{{ChunkID: shared.ID, Score: 0.7}}
		engine := NewEngine(searcher, store, 4, nil)

		intent := model.MultiRegionIntent([]model.Region{model.RegionHenan, model.RegionHubei})
		candidates, _, err := engine.Retrieve(context.Background(), queryVector, intent, plans[model.IntentMultiRegion])

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, 0.7, candidates[0].SimilarityScore)
	})

	t.Run("Zero-result region becomes a warning", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionHenan}, 2)
		engine := NewEngine(searcher, store, 4, nil)

		intent := model.MultiRegionIntent([]model.Region{model.RegionHenan, model.RegionTibet})
		candidates, report, err := engine.Retrieve(context.Background(), queryVector, intent, plans[model.IntentMultiRegion])

		require.NoError(t, err)
		assert.Len(t, candidates, 2)
		assert.Equal(t, []model.Region{model.RegionTibet}, report.ZeroResultRegions)
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, model.WarningPartialRetrieval, report.Warnings[0].Kind)
		assert.Equal(t, model.RegionTibet, report.Warnings[0].Region)
		assert.Equal(t, 0, report.PerRegionReturned[model.RegionTibet])
	})

	t.Run("Failed region does not fail the query", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionHenan, model.RegionHubei}, 2)
		searcher.fail[model.RegionHubei] = errors.New("connection reset")
		engine := NewEngine(searcher, store, 4, nil)

		intent := model.ComparisonIntent([]model.Region{model.RegionHenan, model.RegionHubei})
		candidates, report, err := engine.Retrieve(context.Background(), queryVector, intent, plans[model.IntentComparison])

		require.NoError(t, err)
		assert.Len(t, candidates, 2)
		assert.Equal(t, []model.Region{model.RegionHubei}, report.FailedRegions)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0].Message, "connection reset")
	})

	t.Run("Every search failing is fatal", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		searcher.fail[model.RegionHenan] = errors.New("down")
		searcher.fail[model.RegionHubei] = errors.New("down")
		engine := NewEngine(searcher, store, 4, nil)

		intent := model.MultiRegionIntent([]model.Region{model.RegionHenan, model.RegionHubei})
		candidates, report, err := engine.Retrieve(context.Background(), queryVector, intent, plans[model.IntentMultiRegion])

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrRetrievalUnavailable), "Expected ErrRetrievalUnavailable")
		assert.Nil(t, candidates)
		assert.Len(t, report.FailedRegions, 2)
	})

	t.Run("Slow region is cut off at the deadline", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		seedRegions(store, searcher, []model.Region{model.RegionHenan, model.RegionHubei}, 2)
		searcher.delay[model.RegionHubei] = 5 * time.Second
		engine := NewEngine(searcher, store, 4, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		intent := model.MultiRegionIntent([]model.Region{model.RegionHenan, model.RegionHubei})
		start := time.Now()
		_, report, _ := engine.Retrieve(ctx, queryVector, intent, plans[model.IntentMultiRegion])

		assert.Less(t, time.Since(start), 2*time.Second, "Expected Retrieve to return at the deadline")
		assert.Contains(t, append(report.ZeroResultRegions, report.FailedRegions...), model.RegionHubei)
		assert.Equal(t, 2, report.PerRegionReturned[model.RegionHenan])
	})

	t.Run("Unresolvable hit is dropped with a warning", func(t *testing.T) {
		store := newFakeStore()
		searcher := newFakeSearcher(store)
		kept := store.add(model.RegionHenan, uuid.New(), 0, "kept")
		searcher.fixed[model.RegionHenan] = []model.SearchHit{
			{ChunkID: kept.ID, Score: 0.8},
			{ChunkID: uuid.New(), Score: 0.9},
		}
		engine := NewEngine(searcher, store, 4, nil)

		candidates, report, err := engine.Retrieve(context.Background(), queryVector, model.SingleRegionIntent(model.RegionHenan), plans[model.IntentSingleRegion])

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, kept.ID, candidates[0].ID)
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, model.WarningPartialRetrieval, report.Warnings[0].Kind)
	})
}

func TestPlanSearches(t *testing.T) {
	plan := model.RetrievalPlan{PerRegionCandidateCount: 7}

	t.Run("Duplicate regions are searched once", func(t *testing.T) {
		searches := planSearches(model.MultiRegionIntent([]model.Region{model.RegionHenan, model.RegionHenan, model.RegionHubei}), plan)
		require.Len(t, searches, 2)
		assert.Equal(t, model.RegionHenan, searches[0].key())
		assert.Equal(t, 7, searches[1].k)
	})

	t.Run("Region anchored intent without regions falls back to a global search", func(t *testing.T) {
		searches := planSearches(model.QueryIntent{Kind: model.IntentComparison}, plan)
		require.Len(t, searches, 1)
		assert.Nil(t, searches[0].region)
	})
}
