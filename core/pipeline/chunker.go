package pipeline

import (
	"fmt"
	"math"
	"strings"
)

const (
	methodSentence  = "sentence"
	methodParagraph = "paragraph"
	methodSize      = "size"
	methodSemantic  = "semantic"
)

// newChunkText builds a piece spanning from the first to the last span
func newChunkText(runes []rune, spans []span, ordinal int, method string) ChunkText {
	first, last := spans[0], spans[len(spans)-1]
	return ChunkText{
		Content:  string(runes[first.start:last.end]),
		Ordinal:  ordinal,
		StartPos: first.start,
		EndPos:   last.end,
		Metadata: map[string]interface{}{
			"chunking_method": method,
			"num_units":       len(spans),
		},
	}
}

// SentenceChunker creates a chunker that groups up to maxSentencesPerChunk sentences
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]ChunkText, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		runes := []rune(text)
		sentences := splitSentences(runes, 0, len(runes))

		chunks := []ChunkText{}
		for i := 0; i < len(sentences); i += maxSentencesPerChunk {
			group := sentences[i:min(i+maxSentencesPerChunk, len(sentences))]
			chunks = append(chunks, newChunkText(runes, group, len(chunks), methodSentence))
		}

		return chunks, nil
	}
}

// ParagraphChunker creates a chunker that splits by blank lines
func ParagraphChunker() ChunkFunc {
	return func(text string) ([]ChunkText, error) {
		runes := []rune(text)

		chunks := []ChunkText{}
		for _, paragraph := range splitParagraphs(runes) {
			chunks = append(chunks, newChunkText(runes, []span{paragraph}, len(chunks), methodParagraph))
		}

		return chunks, nil
	}
}

// SizeChunker creates a chunker that packs lines into chunks of about
// maxChars characters. Lines longer than maxChars are split into sentences
// and overlong sentences are cut. Each chunk after the first starts with the
// last overlapChars characters of its predecessor.
func SizeChunker(maxChars int, overlapChars int) ChunkFunc {
	return func(text string) ([]ChunkText, error) {
		if maxChars <= 0 {
			return nil, fmt.Errorf("max chars per chunk must be positive")
		}
		if overlapChars < 0 || overlapChars >= maxChars {
			return nil, fmt.Errorf("overlap must be between 0 and max chars per chunk")
		}

		runes := []rune(text)
		var units []span
		for _, line := range splitLines(runes) {
			units = append(units, fitUnits(runes, line, maxChars)...)
		}

		chunks := []ChunkText{}
		var current []span
		length := 0
		flush := func() {
			if len(current) == 0 {
				return
			}
			chunk := newChunkText(runes, current, len(chunks), methodSize)
			parts := make([]string, len(current))
			for i, s := range current {
				parts[i] = string(runes[s.start:s.end])
			}
			chunk.Content = strings.Join(parts, "\n")
			if overlapChars > 0 && len(chunks) > 0 {
				previous := []rune(chunks[len(chunks)-1].Content)
				overlap := string(previous[max(0, len(previous)-overlapChars):])
				chunk.Content = overlap + "\n" + chunk.Content
				chunk.Metadata["overlap_chars"] = len([]rune(overlap))
			}
			chunks = append(chunks, chunk)
			current = nil
			length = 0
		}

		for _, unit := range units {
			added := unit.len()
			if len(current) > 0 {
				added++
			}
			if len(current) > 0 && length+added > maxChars-overlapChars {
				flush()
				added = unit.len()
			}
			current = append(current, unit)
			length += added
		}
		flush()

		return chunks, nil
	}
}

// fitUnits splits a line that exceeds maxChars into sentences and hard cuts
func fitUnits(runes []rune, line span, maxChars int) []span {
	if line.len() <= maxChars {
		return []span{line}
	}

	var units []span
	for _, sentence := range splitSentences(runes, line.start, line.end) {
		for start := sentence.start; start < sentence.end; start += maxChars {
			if s, ok := trimmed(runes, start, min(start+maxChars, sentence.end)); ok {
				units = append(units, s)
			}
		}
	}
	return units
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// SemanticChunker groups consecutive sentences while they stay similar to the
// running average embedding of the current chunk and fit into maxChars.
func SemanticChunker(embed EmbedFunc, maxChars int, similarityThreshold float32) ChunkFunc {
	return func(text string) ([]ChunkText, error) {
		if embed == nil {
			return nil, fmt.Errorf("semantic chunker needs an embedder")
		}
		if maxChars <= 0 {
			return nil, fmt.Errorf("max chars per chunk must be positive")
		}

		runes := []rune(text)
		sentences := splitSentences(runes, 0, len(runes))

		chunks := []ChunkText{}
		var current []span
		var sum []float32
		length := 0
		flush := func() {
			if len(current) == 0 {
				return
			}
			chunks = append(chunks, newChunkText(runes, current, len(chunks), methodSemantic))
			current, sum, length = nil, nil, 0
		}

		for _, sentence := range sentences {
			embedding, err := embed(string(runes[sentence.start:sentence.end]))
			if err != nil {
				return nil, fmt.Errorf("failed to embed sentence: %w", err)
			}

			if len(current) > 0 {
				average := make([]float32, len(sum))
				for j := range sum {
					average[j] = sum[j] / float32(len(current))
				}
				if cosineSimilarity(average, embedding) < similarityThreshold || length+sentence.len() > maxChars {
					flush()
				}
			}

			if sum == nil {
				sum = make([]float32, len(embedding))
			}
			if len(sum) == len(embedding) {
				for j := range embedding {
					sum[j] += embedding[j]
				}
			}
			current = append(current, sentence)
			length += sentence.len()
		}
		flush()

		return chunks, nil
	}
}
