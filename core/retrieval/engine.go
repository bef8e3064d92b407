package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
	"golang.org/x/sync/errgroup"
)

// lookupGrace bounds chunk and neighbour lookups once the query deadline has
// passed, so hits gathered before the deadline can still be used.
const lookupGrace = 2 * time.Second

// withLookupGrace returns ctx unchanged while it is live. An expired ctx is
// replaced by one that keeps its values and allows lookupGrace more.
func withLookupGrace(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), lookupGrace)
}

// RetrievalReport describes what the sub-searches of one query returned.
// The empty region key stands for the global search.
type RetrievalReport struct {
	PerRegionReturned map[model.Region]int
	ZeroResultRegions []model.Region
	FailedRegions     []model.Region
	Warnings          []model.Warning
}

func (r *RetrievalReport) warn(kind model.WarningKind, region model.Region, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, model.NewWarning(kind, region, fmt.Sprintf(format, args...)))
}

// Engine executes retrieval plans with a bounded concurrent fan-out
type Engine struct {
	searcher    SimilaritySearcher
	store       ChunkStore
	fanOutLimit int
	logger      *slog.Logger
}

// NewEngine creates a new retrieval engine
func NewEngine(searcher SimilaritySearcher, store ChunkStore, fanOutLimit int, logger *slog.Logger) *Engine {
	if fanOutLimit <= 0 {
		fanOutLimit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		searcher:    searcher,
		store:       store,
		fanOutLimit: fanOutLimit,
		logger:      logger,
	}
}

type searchOutcome struct {
	index int
	hits  []model.SearchHit
	err   error
}

type bestHit struct {
	hit    model.SearchHit
	region model.Region
}

// Retrieve runs the searches of the intent, merges them by chunk id keeping
// the highest score and resolves the hits to chunks. Sub-searches that fail,
// time out or return nothing become warnings. Only when every sub-search
// failed the query fails with model.ErrRetrievalUnavailable.
func (e *Engine) Retrieve(ctx context.Context, vector []float32, intent model.QueryIntent, plan model.RetrievalPlan) ([]*model.ScoredChunk, *RetrievalReport, error) {
	searches := planSearches(intent, plan)
	report := &RetrievalReport{PerRegionReturned: map[model.Region]int{}}

	outcomes := e.fanOut(ctx, vector, searches)

	failed := 0
	best := map[uuid.UUID]bestHit{}
	var order []uuid.UUID
	for i, search := range searches {
		region := search.key()
		outcome, ok := outcomes[i]
		switch {
		case !ok:
			failed++
			report.ZeroResultRegions = append(report.ZeroResultRegions, region)
			report.warn(model.WarningPartialRetrieval, region, "search %s timed out", describe(region))
		case outcome.err != nil:
			failed++
			report.FailedRegions = append(report.FailedRegions, region)
			report.warn(model.WarningPartialRetrieval, region, "search %s failed: %v", describe(region), outcome.err)
			e.logger.Warn("Similarity search failed", slog.String("region", string(region)), slog.String("error", outcome.err.Error()))
		default:
			report.PerRegionReturned[region] = len(outcome.hits)
			if len(outcome.hits) == 0 {
				report.ZeroResultRegions = append(report.ZeroResultRegions, region)
				report.warn(model.WarningPartialRetrieval, region, "search %s returned no results", describe(region))
			}
			for _, hit := range outcome.hits {
				current, seen := best[hit.ChunkID]
				if !seen {
					order = append(order, hit.ChunkID)
				}
				if !seen || hit.Score > current.hit.Score {
					best[hit.ChunkID] = bestHit{hit: hit, region: region}
				}
			}
		}
	}

	if failed == len(searches) {
		return nil, report, helper.NewError("retrieve", fmt.Errorf("%w: all %d searches failed", model.ErrRetrievalUnavailable, len(searches)))
	}

	candidates := e.resolve(ctx, order, best, report)
	SortBySimilarity(candidates)

	e.logger.Debug("Retrieved candidates",
		slog.String("intent", intent.String()),
		slog.Int("searches", len(searches)),
		slog.Int("candidates", len(candidates)),
	)

	return candidates, report, nil
}

// fanOut runs the searches concurrently and collects their outcomes until all
// reported or the context expired. Searches do not share a cancelling
// context, a failing search leaves its siblings running.
func (e *Engine) fanOut(ctx context.Context, vector []float32, searches []subSearch) map[int]searchOutcome {
	results := make(chan searchOutcome, len(searches))

	go func() {
		g := errgroup.Group{}
		g.SetLimit(e.fanOutLimit)
		for i, search := range searches {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				hits, err := e.searcher.Search(ctx, vector, search.k, search.region)
				results <- searchOutcome{index: i, hits: hits, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	outcomes := make(map[int]searchOutcome, len(searches))
	for len(outcomes) < len(searches) {
		select {
		case outcome := <-results:
			outcomes[outcome.index] = outcome
		case <-ctx.Done():
			return drain(results, outcomes)
		}
	}
	return outcomes
}

// drain takes the outcomes that already arrived without waiting for more
func drain(results chan searchOutcome, outcomes map[int]searchOutcome) map[int]searchOutcome {
	for {
		select {
		case outcome := <-results:
			outcomes[outcome.index] = outcome
		default:
			return outcomes
		}
	}
}

// resolve fetches the chunks of the merged hits with bounded concurrency.
// Hits that cannot be resolved are dropped with a warning.
func (e *Engine) resolve(ctx context.Context, order []uuid.UUID, best map[uuid.UUID]bestHit, report *RetrievalReport) []*model.ScoredChunk {
	ctx, cancel := withLookupGrace(ctx)
	defer cancel()

	resolved := make([]*model.ScoredChunk, len(order))
	errs := make([]error, len(order))

	g := errgroup.Group{}
	g.SetLimit(e.fanOutLimit)
	for i, id := range order {
		g.Go(func() error {
			chunk, err := e.store.Get(ctx, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			resolved[i] = &model.ScoredChunk{
				Chunk:           chunk,
				SimilarityScore: best[id].hit.Score,
				RetrievalMethod: model.RetrievalMethodVector,
			}
			return nil
		})
	}
	_ = g.Wait()

	candidates := make([]*model.ScoredChunk, 0, len(order))
	for i, id := range order {
		if errs[i] != nil {
			region := best[id].region
			report.warn(model.WarningPartialRetrieval, region, "chunk %s could not be loaded: %v", id, errs[i])
			continue
		}
		candidates = append(candidates, resolved[i])
	}
	return candidates
}

func describe(region model.Region) string {
	if region == "" {
		return "across all regions"
	}
	return "in " + string(region)
}
