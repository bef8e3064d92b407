package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/reportrag/helper"
)

type IndexType string

const (
	IndexHNSW    IndexType = "hnsw"
	IndexIVFFlat IndexType = "ivfflat"
)

// VectorIndexOptions configures the chunk embedding index.
// Zero values fall back to the pgvector defaults (m 16, ef_construction 64, lists 100).
type VectorIndexOptions struct {
	Type           IndexType
	M              int
	EfConstruction int
	Lists          int
}

func (o VectorIndexOptions) statement() (string, error) {
	switch o.Type {
	case IndexHNSW, "":
		m, ef := o.M, o.EfConstruction
		if m <= 0 {
			m = 16
		}
		if ef <= 0 {
			ef = 64
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, ef,
		), nil
	case IndexIVFFlat:
		lists := o.Lists
		if lists <= 0 {
			lists = 100
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", o.Type)
	}
}

// RebuildVectorIndex drops and recreates the embedding index of the chunks table.
// IVFFlat lists should be rebuilt after bulk ingestion since they are trained on existing rows.
func (h *ChunksDBHandler) RebuildVectorIndex(ctx context.Context, options VectorIndexOptions) error {
	statement, err := options.statement()
	if err != nil {
		return helper.NewError("rebuild vector index", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, statement)
	if err != nil {
		return helper.NewError("create index", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Rebuilt vector index",
		"index_type", string(options.Type),
		"m", options.M,
		"ef_construction", options.EfConstruction,
		"lists", options.Lists,
	)

	return nil
}
