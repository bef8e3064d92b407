package memory

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

// ErrRegionFilterUnsupported is returned for region scoped searches.
// Wrap the store in a retrieval.PostFilterSearcher to search one region.
var ErrRegionFilterUnsupported = errors.New("memory store only searches all regions")

// Options tunes the HNSW graph
type Options struct {
	M        int
	EfSearch int
}

// Store keeps chunks in memory and indexes their embeddings in an HNSW graph.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	dimension int
	graph     *hnsw.Graph[uint64]

	chunks     map[uuid.UUID]*model.Chunk
	byDocument map[uuid.UUID][]*model.Chunk

	keys    map[uuid.UUID]uint64
	ids     map[uint64]uuid.UUID
	nextKey uint64
	// graph nodes whose chunk was replaced or deleted
	orphans int
}

// NewStore creates an empty store for embeddings of the given dimension
func NewStore(dimension int, opts Options) (*Store, error) {
	if dimension <= 0 {
		return nil, helper.NewError("new memory store", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	if opts.M == 0 {
		opts.M = 16
	}
	if opts.EfSearch == 0 {
		opts.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = opts.M
	graph.EfSearch = opts.EfSearch
	graph.Ml = 0.25

	return &Store{
		dimension:  dimension,
		graph:      graph,
		chunks:     map[uuid.UUID]*model.Chunk{},
		byDocument: map[uuid.UUID][]*model.Chunk{},
		keys:       map[uuid.UUID]uint64{},
		ids:        map[uint64]uuid.UUID{},
	}, nil
}

// InsertChunk adds or replaces a chunk. The stored copy is owned by the store.
func (s *Store) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunk.Embedding) != s.dimension {
		return helper.NewError("insert chunk", fmt.Errorf("expected embedding of dimension %d, got %d", s.dimension, len(chunk.Embedding)))
	}

	stored := *chunk
	stored.Embedding = slices.Clone(chunk.Embedding)
	if stored.CharCount == 0 {
		stored.CharCount = model.CharCount(stored.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(stored.ID)

	// coder/hnsw breaks when its last node is deleted, replaced nodes are orphaned instead
	key := s.nextKey
	s.nextKey++
	vector := slices.Clone(stored.Embedding)
	normalize(vector)
	s.graph.Add(hnsw.MakeNode(key, vector))

	s.keys[stored.ID] = key
	s.ids[key] = stored.ID
	s.chunks[stored.ID] = &stored

	siblings := append(s.byDocument[stored.SourceDocID], &stored)
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].Ordinal < siblings[j].Ordinal })
	s.byDocument[stored.SourceDocID] = siblings

	return nil
}

// DeleteChunksByDocument removes every chunk of a document and returns how many were removed
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	siblings := slices.Clone(s.byDocument[documentID])
	for _, chunk := range siblings {
		s.removeLocked(chunk.ID)
	}
	return len(siblings), nil
}

func (s *Store) removeLocked(id uuid.UUID) {
	old, ok := s.chunks[id]
	if !ok {
		return
	}

	delete(s.ids, s.keys[id])
	delete(s.keys, id)
	delete(s.chunks, id)
	s.orphans++

	siblings := slices.DeleteFunc(s.byDocument[old.SourceDocID], func(c *model.Chunk) bool { return c.ID == id })
	if len(siblings) == 0 {
		delete(s.byDocument, old.SourceDocID)
	} else {
		s.byDocument[old.SourceDocID] = siblings
	}
}

// Search returns the k chunks most similar to vector across all regions.
// Scores are cosine similarities.
func (s *Store) Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error) {
	if region != nil {
		return nil, ErrRegionFilterUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, helper.NewError("search", fmt.Errorf("expected query of dimension %d, got %d", s.dimension, len(vector)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.chunks) == 0 {
		return []model.SearchHit{}, nil
	}

	query := slices.Clone(vector)
	normalize(query)

	nodes := s.graph.Search(query, min(k+s.orphans, s.graph.Len()))

	hits := make([]model.SearchHit, 0, k)
	for _, node := range nodes {
		id, ok := s.ids[node.Key]
		if !ok {
			continue
		}
		hits = append(hits, model.SearchHit{
			ChunkID: id,
			Score:   1 - float64(s.graph.Distance(query, node.Value)),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Get returns a copy of the chunk
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, helper.NewError("get chunk "+id.String(), model.ErrChunkNotFound)
	}
	c := *chunk
	return &c, nil
}

// Neighbors returns the chunks of the same document within window ordinals
func (s *Store) Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, helper.NewError("neighbors of "+id.String(), model.ErrChunkNotFound)
	}
	if window <= 0 {
		return nil, nil
	}

	var neighbors []*model.Chunk
	for _, sibling := range s.byDocument[chunk.SourceDocID] {
		if sibling.ID == id || sibling.Ordinal < chunk.Ordinal-window || sibling.Ordinal > chunk.Ordinal+window {
			continue
		}
		c := *sibling
		neighbors = append(neighbors, &c)
	}
	return neighbors, nil
}

// Len returns the number of stored chunks
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// RegionChunkCounts returns the number of chunks per region
func (s *Store) RegionChunkCounts(ctx context.Context) (map[model.Region]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[model.Region]int{}
	for _, chunk := range s.chunks {
		counts[chunk.Region]++
	}
	return counts, nil
}

// ContentTypeCounts returns the number of chunks per content type
func (s *Store) ContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[model.ContentType]int{}
	for _, chunk := range s.chunks {
		counts[model.ContentTypeOf(chunk)]++
	}
	return counts, nil
}

// Save writes all chunks to path. The graph is rebuilt from the embeddings on Load.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	chunks := make([]model.Chunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		chunks = append(chunks, *chunk)
	}
	s.mu.RUnlock()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID.String() < chunks[j].ID.String() })

	file, err := os.Create(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return helper.NewError("save memory store", err)
	}
	writer := bufio.NewWriter(file)
	err = gob.NewEncoder(writer).Encode(snapshot{Dimension: s.dimension, Chunks: chunks})
	if err == nil {
		err = writer.Flush()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return helper.NewError("save memory store", err)
	}
	return nil
}

// Load adds the chunks saved at path
func (s *Store) Load(ctx context.Context, path string) error {
	file, err := os.Open(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return helper.NewError("load memory store", err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&snap); err != nil {
		return helper.NewError("load memory store", err)
	}
	if snap.Dimension != s.dimension {
		return helper.NewError("load memory store", fmt.Errorf("file has dimension %d, store has %d", snap.Dimension, s.dimension))
	}

	for i := range snap.Chunks {
		if err := s.InsertChunk(ctx, &snap.Chunks[i]); err != nil {
			return helper.NewError("load memory store", err)
		}
	}
	return nil
}

type snapshot struct {
	Dimension int
	Chunks    []model.Chunk
}

func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
