package model

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type RetrievalMethod string

const (
	RetrievalMethodVector   RetrievalMethod = "vector"
	RetrievalMethodNeighbor RetrievalMethod = "neighbor"
)

// Chunk represents a span of a regional report, the unit of retrieval
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	SourceDocID uuid.UUID `json:"source_doc_id"`
	Region      Region    `json:"region"`
	Content     string    `json:"content"`
	Ordinal     int       `json:"ordinal"`
	CharCount   int       `json:"char_count"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewChunk creates a chunk with a fresh id and the char count derived from content
func NewChunk(sourceDocID uuid.UUID, region Region, ordinal int, content string) *Chunk {
	return &Chunk{
		ID:          uuid.New(),
		SourceDocID: sourceDocID,
		Region:      region,
		Content:     content,
		Ordinal:     ordinal,
		CharCount:   CharCount(content),
		Metadata:    Metadata{},
	}
}

// CharCount counts characters (code points), not bytes
func CharCount(content string) int {
	return utf8.RuneCountInString(content)
}

// ScoredChunk is a chunk candidate of a single query
type ScoredChunk struct {
	*Chunk
	SimilarityScore float64         `json:"similarity_score"`
	DensityScore    float64         `json:"density_score"`
	RankScore       float64         `json:"rank_score"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	AnchorID        *uuid.UUID      `json:"anchor_id,omitempty"`
}

// SearchHit is one result of a similarity search
type SearchHit struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Score   float64   `json:"score"`
}
