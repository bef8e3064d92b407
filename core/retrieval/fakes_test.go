package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/model"
)

// fakeStore keeps chunks in memory, grouped by source document
type fakeStore struct {
	mu            sync.Mutex
	chunks        map[uuid.UUID]*model.Chunk
	docs          map[uuid.UUID][]*model.Chunk
	failNeighbors map[uuid.UUID]bool
	failGet       map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:        map[uuid.UUID]*model.Chunk{},
		docs:          map[uuid.UUID][]*model.Chunk{},
		failNeighbors: map[uuid.UUID]bool{},
		failGet:       map[uuid.UUID]bool{},
	}
}

func (s *fakeStore) add(region model.Region, doc uuid.UUID, ordinal int, content string) *model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk := model.NewChunk(doc, region, ordinal, content)
	s.chunks[chunk.ID] = chunk
	s.docs[doc] = append(s.docs[doc], chunk)
	return chunk
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet[id] {
		return nil, errors.New("store unavailable")
	}
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, model.ErrChunkNotFound
	}
	return chunk, nil
}

func (s *fakeStore) Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNeighbors[id] {
		return nil, errors.New("neighbour lookup failed")
	}
	anchor, ok := s.chunks[id]
	if !ok {
		return nil, model.ErrChunkNotFound
	}
	var neighbors []*model.Chunk
	for _, c := range s.docs[anchor.SourceDocID] {
		if c.ID == id {
			continue
		}
		if c.Ordinal >= anchor.Ordinal-window && c.Ordinal <= anchor.Ordinal+window {
			neighbors = append(neighbors, c)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Ordinal < neighbors[j].Ordinal })
	return neighbors, nil
}

// fakeSearcher scores chunks from a fixed table and records its calls
type fakeSearcher struct {
	mu     sync.Mutex
	store  *fakeStore
	scores map[uuid.UUID]float64
	fixed  map[model.Region][]model.SearchHit
	fail   map[model.Region]error
	delay  map[model.Region]time.Duration
	calls  []searchCall
}

type searchCall struct {
	region *model.Region
	k      int
}

func newFakeSearcher(store *fakeStore) *fakeSearcher {
	return &fakeSearcher{
		store:  store,
		scores: map[uuid.UUID]float64{},
		fixed:  map[model.Region][]model.SearchHit{},
		fail:   map[model.Region]error{},
		delay:  map[model.Region]time.Duration{},
	}
}

func (s *fakeSearcher) Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error) {
	var key model.Region
	if region != nil {
		key = *region
	}

	s.mu.Lock()
	s.calls = append(s.calls, searchCall{region: region, k: k})
	delay := s.delay[key]
	err := s.fail[key]
	fixed, hasFixed := s.fixed[key]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if hasFixed {
		return fixed, nil
	}

	s.store.mu.Lock()
	var hits []model.SearchHit
	for id, chunk := range s.store.chunks {
		if region != nil && chunk.Region != *region {
			continue
		}
		hits = append(hits, model.SearchHit{ChunkID: id, Score: s.scores[id]})
	}
	s.store.mu.Unlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID.String() < hits[j].ChunkID.String()
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSearcher) searchedRegions() []model.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	regions := make([]model.Region, 0, len(s.calls))
	for _, c := range s.calls {
		if c.region == nil {
			regions = append(regions, "")
		} else {
			regions = append(regions, *c.region)
		}
	}
	sort.Slice(regions, func(i, j int) bool { return model.LessRegion(regions[i], regions[j]) })
	return regions
}
