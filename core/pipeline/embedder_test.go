package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEmbedder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err, "Expected no error creating the embedder")

	t.Run("Generate embedding for Chinese text", func(t *testing.T) {
		embedding, err := embedder("河南省全年地区生产总值增长5%左右。")
		require.NoError(t, err, "Expected no error embedding text")
		assert.Len(t, embedding, DefaultEmbeddingDim, "Expected the default dimension")

		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		text := "稳步推进新型城镇化"
		embedding1, err := embedder(text)
		require.NoError(t, err, "Expected no error embedding text")
		embedding2, err := embedder(text)
		require.NoError(t, err, "Expected no error embedding text")

		for i := range embedding1 {
			assert.InDelta(t, embedding1[i], embedding2[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		growth1, err := embedder("地区生产总值增长6%")
		require.NoError(t, err, "Expected no error embedding text")
		growth2, err := embedder("GDP growth target of six percent")
		require.NoError(t, err, "Expected no error embedding text")
		other, err := embedder("加强文物保护和非物质文化遗产传承")
		require.NoError(t, err, "Expected no error embedding text")

		assert.Greater(t, cosineSimilarity(growth1, growth2), cosineSimilarity(growth1, other),
			"Semantically similar texts should have higher similarity across languages")
	})

	t.Run("Handle very long text", func(t *testing.T) {
		longText := ""
		for i := 0; i < 100; i++ {
			longText += "全面推进乡村振兴，加快建设农业强省。"
		}
		embedding, err := embedder(longText)
		require.NoError(t, err, "Expected no error embedding long text")
		assert.Len(t, embedding, DefaultEmbeddingDim, "Expected the default dimension")
	})
}
