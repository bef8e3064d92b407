package retrieval

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

// CachedSearcher memoizes similarity searches by exact query vector, region and k.
// Entries are only dropped by eviction or Purge, so it has to be purged after ingestion.
type CachedSearcher struct {
	next   SimilaritySearcher
	cache  *lru.Cache[string, []model.SearchHit]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedSearcher creates a cache holding up to size searches
func NewCachedSearcher(next SimilaritySearcher, size int) (*CachedSearcher, error) {
	cache, err := lru.New[string, []model.SearchHit](size)
	if err != nil {
		return nil, helper.NewError("new search cache", err)
	}
	return &CachedSearcher{next: next, cache: cache}, nil
}

// Search serves from the cache or delegates. Errors are not cached.
func (c *CachedSearcher) Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error) {
	key := cacheKey(vector, k, region)
	if hits, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return append([]model.SearchHit(nil), hits...), nil
	}
	c.misses.Add(1)

	hits, err := c.next.Search(ctx, vector, k, region)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, append([]model.SearchHit(nil), hits...))
	return hits, nil
}

// Purge drops all cached searches
func (c *CachedSearcher) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached searches
func (c *CachedSearcher) Len() int {
	return c.cache.Len()
}

// Stats returns the cache hit and miss counters
func (c *CachedSearcher) Stats() (hits uint64, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func cacheKey(vector []float32, k int, region *model.Region) string {
	var b strings.Builder
	b.Grow(len(vector)*9 + 32)
	if region != nil {
		b.WriteString(string(*region))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(k))
	b.WriteByte('|')
	for _, f := range vector {
		b.WriteString(strconv.FormatUint(uint64(math.Float32bits(f)), 16))
		b.WriteByte(',')
	}
	return b.String()
}
