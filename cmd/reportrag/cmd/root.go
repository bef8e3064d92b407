// Package cmd provides the CLI commands for reportrag.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/siherrmann/reportrag"
	"github.com/siherrmann/reportrag/core/pipeline"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
	"github.com/spf13/cobra"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// newEmbedder builds the query and chunk embedder, replaced in tests
var newEmbedder = pipeline.DefaultEmbedder

// globalOptions holds the persistent flags shared by all commands
type globalOptions struct {
	configPath   string
	store        string
	memoryFile   string
	embeddingDim int
	debug        bool
}

// NewRootCmd creates the root command for the reportrag CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "reportrag",
		Short: "Region-aware retrieval over provincial government work reports",
		Long: `reportrag ingests provincial government work reports and answers
questions with a context assembled from the relevant regions.

Questions naming one region search that region only, comparisons search
every named region and share the character budget equally.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (defaults are used if missing)")
	cmd.PersistentFlags().StringVar(&opts.store, "store", storePostgres, "Chunk store: postgres, memory")
	cmd.PersistentFlags().StringVar(&opts.memoryFile, "memory-file", "reportrag.gob", "File the memory store is loaded from and saved to")
	cmd.PersistentFlags().IntVar(&opts.embeddingDim, "dim", pipeline.DefaultEmbeddingDim, "Embedding dimension of the model")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// openService builds the service for the selected store. The embedding
// pipeline is only created when withPipeline is set since it may download a model.
func openService(cmd *cobra.Command, opts *globalOptions, withPipeline bool) (*reportrag.Service, error) {
	config, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := helper.NewLogger(cmd.ErrOrStderr(), level)

	var s *reportrag.Service
	switch strings.ToLower(opts.store) {
	case storeMemory:
		s, err = reportrag.NewWithMemory(opts.embeddingDim, config, logger)
		if err != nil {
			return nil, err
		}
		err = s.Memory.Load(cmd.Context(), opts.memoryFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	case storePostgres:
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		s, err = reportrag.NewWithPostgres(dbConfig, opts.embeddingDim, config, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store %q (use %s or %s)", opts.store, storePostgres, storeMemory)
	}

	if withPipeline {
		embedder, err := newEmbedder()
		if err != nil {
			_ = s.Close()
			return nil, helper.NewError("create embedder", err)
		}
		s.SetPipeline(pipeline.NewPipeline(pipeline.SizeChunker(reportrag.DefaultChunkChars, 0), embedder))
	}

	return s, nil
}
