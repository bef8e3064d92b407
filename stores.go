package reportrag

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/database"
	"github.com/siherrmann/reportrag/memory"
	"github.com/siherrmann/reportrag/model"
)

// DocumentStore persists ingested reports and their chunks.
// InsertDocument assigns the document's RID.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	DeleteDocument(ctx context.Context, rid uuid.UUID) error
	RegionChunkCounts(ctx context.Context) (map[model.Region]int, error)
	ContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error)
}

type postgresDocuments struct {
	documents *database.DocumentsDBHandler
	chunks    *database.ChunksDBHandler
}

func (p *postgresDocuments) InsertDocument(ctx context.Context, doc *model.Document) error {
	return p.documents.InsertDocument(ctx, doc)
}

func (p *postgresDocuments) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	return p.chunks.InsertChunk(ctx, chunk)
}

// DeleteDocument relies on the cascading foreign key of the chunks table
func (p *postgresDocuments) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	return p.documents.DeleteDocument(ctx, rid)
}

func (p *postgresDocuments) RegionChunkCounts(ctx context.Context) (map[model.Region]int, error) {
	return p.chunks.SelectRegionChunkCounts(ctx)
}

func (p *postgresDocuments) ContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error) {
	return p.chunks.SelectContentTypeCounts(ctx)
}

// memoryDocuments keeps no document rows, chunks carry everything retrieval needs
type memoryDocuments struct {
	store *memory.Store
}

func (m *memoryDocuments) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc.RID == uuid.Nil {
		doc.RID = uuid.New()
	}
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	return ctx.Err()
}

func (m *memoryDocuments) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	return m.store.InsertChunk(ctx, chunk)
}

func (m *memoryDocuments) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	_, err := m.store.DeleteChunksByDocument(ctx, rid)
	return err
}

func (m *memoryDocuments) RegionChunkCounts(ctx context.Context) (map[model.Region]int, error) {
	return m.store.RegionChunkCounts(ctx)
}

func (m *memoryDocuments) ContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error) {
	return m.store.ContentTypeCounts(ctx)
}
