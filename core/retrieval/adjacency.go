package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/model"
	"golang.org/x/sync/errgroup"
)

// Aggregator adds the source-order neighbours of retrieved chunks
type Aggregator struct {
	store       ChunkStore
	scoreFactor float64
	fanOutLimit int
	logger      *slog.Logger
}

// NewAggregator creates an aggregator. Neighbours are scored with
// scoreFactor times the similarity of their anchor.
func NewAggregator(store ChunkStore, scoreFactor float64, fanOutLimit int, logger *slog.Logger) *Aggregator {
	if fanOutLimit <= 0 {
		fanOutLimit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:       store,
		scoreFactor: scoreFactor,
		fanOutLimit: fanOutLimit,
		logger:      logger,
	}
}

// Expand returns the candidates plus the neighbours within window ordinals of
// each candidate. Every chunk id appears once. Directly retrieved chunks keep
// their own score, a neighbour reached from several anchors keeps the highest.
// An expired ctx still gets a short grace period, so anchors gathered before
// the query deadline keep their neighbours.
func (a *Aggregator) Expand(ctx context.Context, candidates []*model.ScoredChunk, window int) ([]*model.ScoredChunk, []model.Warning) {
	expanded := make([]*model.ScoredChunk, len(candidates))
	copy(expanded, candidates)
	if window <= 0 || len(candidates) == 0 {
		return expanded, nil
	}

	ctx, cancel := withLookupGrace(ctx)
	defer cancel()

	neighbors := make([][]*model.Chunk, len(candidates))
	errs := make([]error, len(candidates))

	g := errgroup.Group{}
	g.SetLimit(a.fanOutLimit)
	for i, anchor := range candidates {
		g.Go(func() error {
			neighbors[i], errs[i] = a.store.Neighbors(ctx, anchor.ID, window)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[uuid.UUID]*model.ScoredChunk, len(candidates))
	direct := make(map[uuid.UUID]bool, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		direct[c.ID] = true
	}

	var warnings []model.Warning
	for i, anchor := range candidates {
		if errs[i] != nil {
			warnings = append(warnings, model.NewWarning(
				model.WarningNeighborExpansionFailed,
				anchor.Region,
				fmt.Sprintf("neighbours of chunk %s could not be loaded: %v", anchor.ID, errs[i]),
			))
			a.logger.Warn("Neighbour expansion failed", slog.String("chunk_id", anchor.ID.String()), slog.String("error", errs[i].Error()))
			continue
		}

		score := anchor.SimilarityScore * a.scoreFactor
		for _, neighbor := range neighbors[i] {
			if direct[neighbor.ID] {
				continue
			}

			anchorID := anchor.ID
			if existing, ok := byID[neighbor.ID]; ok {
				if score > existing.SimilarityScore {
					existing.SimilarityScore = score
					existing.AnchorID = &anchorID
				}
				continue
			}

			scored := &model.ScoredChunk{
				Chunk:           neighbor,
				SimilarityScore: score,
				RetrievalMethod: model.RetrievalMethodNeighbor,
				AnchorID:        &anchorID,
			}
			byID[neighbor.ID] = scored
			expanded = append(expanded, scored)
		}
	}

	SortBySimilarity(expanded)
	return expanded, warnings
}
