package pipeline

import (
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/reportrag/helper"
)

const (
	// DefaultModelName is a multilingual sentence transformer that handles Chinese reports
	DefaultModelName = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"
	// DefaultEmbeddingDim is the output dimension of DefaultModelName
	DefaultEmbeddingDim = 384

	defaultOnnxFilePath = "onnx/model.onnx"
)

// DefaultEmbedder creates an embedder using DefaultModelName
func DefaultEmbedder() (EmbedFunc, error) {
	return NewEmbedder(DefaultModelName, defaultOnnxFilePath)
}

// NewEmbedder creates an embedder from a hugging face feature extraction model.
// The model is downloaded into ./models on first use.
func NewEmbedder(modelName string, onnxFilePath string) (EmbedFunc, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFilePath)
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "reportrag-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	// Queries run concurrently, the pipeline is used by one at a time
	var mu sync.Mutex
	return func(text string) ([]float32, error) {
		mu.Lock()
		result, err := sentencePipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}
