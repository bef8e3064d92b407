package retrieval

import (
	"context"
	"errors"

	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

// PostFilterSearcher adds region filtering to an index that can only search
// globally. It over-fetches and drops hits of other regions.
type PostFilterSearcher struct {
	index     SimilaritySearcher
	store     ChunkStore
	overfetch int
}

// NewPostFilterSearcher wraps a global-only index. Region searches ask the
// index for k times overfetch hits.
func NewPostFilterSearcher(index SimilaritySearcher, store ChunkStore, overfetch int) *PostFilterSearcher {
	if overfetch < 1 {
		overfetch = 1
	}
	return &PostFilterSearcher{
		index:     index,
		store:     store,
		overfetch: overfetch,
	}
}

// Search returns up to k hits of the region, fewer if the over-fetched
// window did not contain enough of them.
func (s *PostFilterSearcher) Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error) {
	if region == nil {
		return s.index.Search(ctx, vector, k, nil)
	}

	hits, err := s.index.Search(ctx, vector, k*s.overfetch, nil)
	if err != nil {
		return nil, err
	}

	filtered := make([]model.SearchHit, 0, k)
	for _, hit := range hits {
		if len(filtered) == k {
			break
		}

		chunk, err := s.store.Get(ctx, hit.ChunkID)
		if errors.Is(err, model.ErrChunkNotFound) {
			continue
		} else if err != nil {
			return nil, helper.NewError("post filter", err)
		}

		if chunk.Region == *region {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}
