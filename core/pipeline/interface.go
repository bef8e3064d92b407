package pipeline

import (
	"fmt"
	"maps"

	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

// ChunkFunc splits text into ordered pieces.
// Ordinals start at zero and are consecutive so neighbours can be found by ordinal.
type ChunkFunc func(text string) ([]ChunkText, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// ChunkText is one piece of a report before it is embedded
type ChunkText struct {
	Content string
	Ordinal int
	// Rune offsets in the source text
	StartPos int
	EndPos   int
	Metadata model.Metadata
}

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder EmbedFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process splits the document content into embedded chunks carrying the
// document's id and region. Every chunk is tagged with its content type.
func (p *Pipeline) Process(doc *model.Document) ([]*model.Chunk, error) {
	if p.Chunker == nil || p.Embedder == nil {
		return nil, helper.NewError("process", fmt.Errorf("pipeline needs a chunker and an embedder"))
	}

	pieces, err := p.Chunker(doc.Content)
	if err != nil {
		return nil, helper.NewError("chunk", err)
	}

	chunks := make([]*model.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		embedding, err := p.Embedder(piece.Content)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("embed chunk %d", piece.Ordinal), err)
		}

		chunk := model.NewChunk(doc.RID, doc.Region, piece.Ordinal, piece.Content)
		chunk.Embedding = embedding
		if piece.Metadata != nil {
			chunk.Metadata = maps.Clone(piece.Metadata)
		}
		chunk.Metadata["start_pos"] = piece.StartPos
		chunk.Metadata["end_pos"] = piece.EndPos
		chunk.Metadata[model.MetadataContentType] = string(model.ClassifyContent(piece.Content))
		if doc.Title != "" {
			chunk.Metadata["title"] = doc.Title
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
