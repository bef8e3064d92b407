package cmd

import (
	"fmt"
	"strings"

	"github.com/siherrmann/reportrag/database"
	"github.com/spf13/cobra"
)

func newReindexCmd(global *globalOptions) *cobra.Command {
	var opts database.VectorIndexOptions
	var indexType string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the pgvector embedding index",
		Long: `Drop and recreate the embedding index of the chunks table.
IVFFlat indexes should be rebuilt after bulk ingestion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = database.IndexType(strings.ToLower(indexType))
			return runReindex(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&indexType, "type", string(database.IndexHNSW), "Index type: hnsw, ivfflat")
	cmd.Flags().IntVar(&opts.M, "m", 0, "HNSW connections per node (0 uses the pgvector default)")
	cmd.Flags().IntVar(&opts.EfConstruction, "ef-construction", 0, "HNSW candidate list size during build (0 uses the pgvector default)")
	cmd.Flags().IntVar(&opts.Lists, "lists", 0, "IVFFlat list count (0 uses the pgvector default)")

	return cmd
}

func runReindex(cmd *cobra.Command, global *globalOptions, opts database.VectorIndexOptions) error {
	if !strings.EqualFold(global.store, storePostgres) {
		return fmt.Errorf("reindex needs the %s store", storePostgres)
	}

	s, err := openService(cmd, global, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Chunks.RebuildVectorIndex(cmd.Context(), opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s index\n", opts.Type)
	return nil
}
