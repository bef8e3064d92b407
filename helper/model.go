package helper

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir is where embedding models are stored unless REPORTRAG_MODEL_DIR is set
const DefaultModelDir = "./models"

// ModelDir returns the directory embedding models are stored in
func ModelDir() string {
	if dir := os.Getenv("REPORTRAG_MODEL_DIR"); dir != "" {
		return dir
	}
	return DefaultModelDir
}

// ModelPath is the local directory of a Hugging Face model name.
// Slashes in the name become underscores.
func ModelPath(modelName string) string {
	return filepath.Join(ModelDir(), strings.ReplaceAll(modelName, "/", "_"))
}

// PrepareModel downloads the model into ModelDir if it is not there yet and
// returns its local path. onnxFilePath selects one ONNX file of repositories
// that ship several.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	if strings.TrimSpace(modelName) == "" {
		return "", NewError("model name", errors.New("model name is empty"))
	}

	modelPath := ModelPath(modelName)
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", NewError("stat model", err)
	}

	if err := os.MkdirAll(ModelDir(), 0750); err != nil {
		return "", NewError("create model directory", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, ModelDir(), downloadOptions)
	if err != nil {
		return "", NewError("download model", err)
	}
	return downloadedPath, nil
}
