package retrieval

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/model"
)

// SimilaritySearcher returns the top-k chunk ids for a query vector.
// A nil region searches all regions.
type SimilaritySearcher interface {
	Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error)
}

// ChunkStore resolves chunk ids and source-order neighbours.
// Neighbors returns the chunks of the same source document within window
// ordinals of the chunk, the chunk itself excluded.
type ChunkStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error)
}

// SortBySimilarity orders by similarity descending, ties by id
func SortBySimilarity(chunks []*model.ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].SimilarityScore != chunks[j].SimilarityScore {
			return chunks[i].SimilarityScore > chunks[j].SimilarityScore
		}
		return bytes.Compare(chunks[i].ID[:], chunks[j].ID[:]) < 0
	})
}
