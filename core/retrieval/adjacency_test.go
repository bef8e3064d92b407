package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func direct(chunk *model.Chunk, score float64) *model.ScoredChunk {
	return &model.ScoredChunk{Chunk: chunk, SimilarityScore: score, RetrievalMethod: model.RetrievalMethodVector}
}

func TestAggregatorExpand(t *testing.T) {
	ctx := context.Background()

	newReport := func() (*fakeStore, []*model.Chunk) {
		store := newFakeStore()
		doc := uuid.New()
		chunks := make([]*model.Chunk, 6)
		for i := range chunks {
			chunks[i] = store.add(model.RegionHenan, doc, i, "paragraph")
		}
		return store, chunks
	}

	t.Run("Window zero is a no-op", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		candidates := []*model.ScoredChunk{direct(chunks[2], 0.8)}
		expanded, warnings := aggregator.Expand(ctx, candidates, 0)

		assert.Equal(t, candidates, expanded)
		assert.Empty(t, warnings)
	})

	t.Run("Neighbours get half the anchor score and the anchor id", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		expanded, warnings := aggregator.Expand(ctx, []*model.ScoredChunk{direct(chunks[2], 0.8)}, 1)

		assert.Empty(t, warnings)
		require.Len(t, expanded, 3)
		assert.Equal(t, chunks[2].ID, expanded[0].ID, "Anchor should rank first")
		for _, neighbor := range expanded[1:] {
			assert.Equal(t, model.RetrievalMethodNeighbor, neighbor.RetrievalMethod)
			assert.InDelta(t, 0.4, neighbor.SimilarityScore, 1e-9)
			require.NotNil(t, neighbor.AnchorID)
			assert.Equal(t, chunks[2].ID, *neighbor.AnchorID)
			assert.Contains(t, []int{1, 3}, neighbor.Ordinal)
		}
	})

	t.Run("Direct hit that is also a neighbour appears once with its own score", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		candidates := []*model.ScoredChunk{direct(chunks[2], 0.9), direct(chunks[3], 0.3)}
		expanded, _ := aggregator.Expand(ctx, candidates, 1)

		seen := map[uuid.UUID]int{}
		for _, c := range expanded {
			seen[c.ID]++
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "Chunk %s should appear once", id)
		}
		for _, c := range expanded {
			if c.ID == chunks[3].ID {
				assert.Equal(t, 0.3, c.SimilarityScore, "Direct hit should keep its own score")
				assert.Equal(t, model.RetrievalMethodVector, c.RetrievalMethod)
			}
		}
		assert.Len(t, expanded, 4, "Expected ordinals 1 to 4")
	})

	t.Run("Neighbour of several anchors keeps the highest synthetic score", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		candidates := []*model.ScoredChunk{direct(chunks[1], 0.4), direct(chunks[3], 0.8)}
		expanded, _ := aggregator.Expand(ctx, candidates, 1)

		var middle *model.ScoredChunk
		for _, c := range expanded {
			if c.ID == chunks[2].ID {
				middle = c
			}
		}
		require.NotNil(t, middle)
		assert.InDelta(t, 0.4, middle.SimilarityScore, 1e-9)
		assert.Equal(t, chunks[3].ID, *middle.AnchorID)
	})

	t.Run("Window larger than one reaches further ordinals", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		expanded, _ := aggregator.Expand(ctx, []*model.ScoredChunk{direct(chunks[0], 0.6)}, 2)

		assert.Len(t, expanded, 3)
	})

	t.Run("Failed neighbour fetch keeps the anchor and warns", func(t *testing.T) {
		store, chunks := newReport()
		store.failNeighbors[chunks[2].ID] = true
		aggregator := NewAggregator(store, 0.5, 4, nil)

		expanded, warnings := aggregator.Expand(ctx, []*model.ScoredChunk{direct(chunks[2], 0.8), direct(chunks[5], 0.5)}, 1)

		require.Len(t, warnings, 1)
		assert.Equal(t, model.WarningNeighborExpansionFailed, warnings[0].Kind)
		assert.Equal(t, model.RegionHenan, warnings[0].Region)
		assert.Len(t, expanded, 3, "Expected both anchors plus the neighbour of the second")
	})

	t.Run("Input candidates are not modified", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(store, 0.5, 4, nil)

		candidates := []*model.ScoredChunk{direct(chunks[4], 0.2), direct(chunks[1], 0.9)}
		_, _ = aggregator.Expand(ctx, candidates, 1)

		assert.Equal(t, chunks[4].ID, candidates[0].ID)
		assert.Equal(t, 0.2, candidates[0].SimilarityScore)
	})

	t.Run("Expired query context still expands gathered anchors", func(t *testing.T) {
		store, chunks := newReport()
		aggregator := NewAggregator(contextStore{store}, 0.5, 4, nil)
		expired, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		<-expired.Done()

		expanded, warnings := aggregator.Expand(expired, []*model.ScoredChunk{direct(chunks[2], 0.8)}, 1)

		assert.Empty(t, warnings, "Expected no neighbour_expansion_failed warnings")
		assert.Len(t, expanded, 3, "Expected the anchor plus both neighbours")
	})
}

// contextStore fails lookups on a done context like the database handlers do
type contextStore struct {
	*fakeStore
}

func (s contextStore) Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fakeStore.Neighbors(ctx, id, window)
}
