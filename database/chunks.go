package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
	loadSql "github.com/siherrmann/reportrag/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	DeleteChunk(ctx context.Context, id uuid.UUID) error
	DeleteChunksByDocument(ctx context.Context, documentRID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error)
	Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error)
	SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error)
	SelectRegionChunkCounts(ctx context.Context) (map[model.Region]int, error)
	SelectContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error)
}

// ChunksDBHandler handles chunk-related database operations.
// It serves as similarity searcher with native region filtering and as chunk store.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
// The documents table has to exist since chunks reference their document.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk. A nil id is generated by the database.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	var id interface{}
	if chunk.ID != uuid.Nil {
		id = chunk.ID
	}

	var embedding interface{}
	if len(chunk.Embedding) > 0 {
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	if chunk.CharCount == 0 {
		chunk.CharCount = model.CharCount(chunk.Content)
	}
	if chunk.Metadata == nil {
		chunk.Metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		chunk.SourceDocID,
		string(chunk.Region),
		chunk.Content,
		chunk.Ordinal,
		chunk.CharCount,
		embedding,
		chunk.Metadata,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunk($1)`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteChunksByDocument deletes all chunks of a document
func (h *ChunksDBHandler) DeleteChunksByDocument(ctx context.Context, documentRID uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunks_by_document($1)`, documentRID)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// Get retrieves a chunk by ID, unknown ids return model.ErrChunkNotFound
func (h *ChunksDBHandler) Get(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_chunk($1)`, id)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError(fmt.Sprintf("select chunk %s", id), model.ErrChunkNotFound)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// Neighbors retrieves the chunks of the same document within window ordinals of the chunk
func (h *ChunksDBHandler) Neighbors(ctx context.Context, id uuid.UUID, window int) ([]*model.Chunk, error) {
	if window <= 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunk_neighbors($1, $2)`, id, window)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanChunks(rows)
}

// SelectChunksByDocument retrieves all chunks of a document in ordinal order
func (h *ChunksDBHandler) SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunks_by_document($1)`, documentRID)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanChunks(rows)
}

// defaultEfSearch and maxEfSearch are the pgvector bounds of hnsw.ef_search
const (
	defaultEfSearch = 40
	maxEfSearch     = 1000
)

// searchSettings tunes the approximate index scan of one search.
// pgvector applies the region filter after the index scan, so filtered
// searches scan iteratively until k rows of the region are found.
func searchSettings(k int, filtered bool) []string {
	ef := min(max(k, defaultEfSearch), maxEfSearch)
	settings := []string{fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, ef)}
	if filtered {
		settings = append(settings,
			`SET LOCAL hnsw.iterative_scan = strict_order`,
			`SET LOCAL ivfflat.iterative_scan = relaxed_order`,
		)
	}
	return settings
}

// Search returns the k most similar chunks, restricted to region if given.
// The region filter is applied inside the database query.
func (h *ChunksDBHandler) Search(ctx context.Context, vector []float32, k int, region *model.Region) ([]model.SearchHit, error) {
	var regionFilter interface{}
	if region != nil {
		regionFilter = string(*region)
	}

	tx, err := h.db.Instance.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, helper.NewError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, setting := range searchSettings(k, region != nil) {
		_, err = tx.ExecContext(ctx, setting)
		if err != nil {
			return nil, helper.NewError("search settings", err)
		}
	}

	rows, err := tx.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		pgvector.NewVector(vector),
		k,
		regionFilter,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hits := []model.SearchHit{}
	for rows.Next() {
		var hit model.SearchHit
		err := rows.Scan(&hit.ChunkID, &hit.Score)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// SelectRegionChunkCounts counts the stored chunks per region
func (h *ChunksDBHandler) SelectRegionChunkCounts(ctx context.Context) (map[model.Region]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_region_chunk_counts()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[model.Region]int{}
	for rows.Next() {
		var region string
		var count int
		err := rows.Scan(&region, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[model.Region(region)] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

// SelectContentTypeCounts counts the stored chunks per content type
func (h *ChunksDBHandler) SelectContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_content_type_counts()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[model.ContentType]int{}
	for rows.Next() {
		var contentType string
		var count int
		err := rows.Scan(&contentType, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[model.ContentType(contentType)] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row scanner, chunk *model.Chunk) error {
	var region string
	err := row.Scan(
		&chunk.ID,
		&chunk.SourceDocID,
		&region,
		&chunk.Content,
		&chunk.Ordinal,
		&chunk.CharCount,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return err
	}
	chunk.Region = model.Region(region)
	return nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}
