package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/siherrmann/reportrag/model"
	"github.com/spf13/cobra"
)

func newIngestCmd(global *globalOptions) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Chunk, embed and store report files",
		Long: `Read plain text reports, detect their region from the file name or the
beginning of the text, and store their embedded chunks.

Examples:
  reportrag ingest reports/*.txt
  reportrag ingest report.txt --region Henan
  reportrag ingest reports/*.txt --store memory --memory-file reports.gob`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, global, args, region)
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "Region of all files instead of detecting it")

	return cmd
}

func runIngest(cmd *cobra.Command, global *globalOptions, paths []string, region string) error {
	var forced model.Region
	if region != "" {
		parsed, ok := model.ParseRegion(region)
		if !ok {
			return fmt.Errorf("unknown region %q", region)
		}
		forced = parsed
	}

	s, err := openService(cmd, global, true)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	total := 0
	for _, path := range paths {
		doc, err := model.NewDocumentFromFile(path, model.Metadata{"filename": filepath.Base(path)})
		if err != nil {
			return err
		}
		if forced != "" {
			doc.Region = forced
		}

		n, err := s.IngestDocument(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
		fmt.Fprintf(out, "%s\t%s\t%d chunks\n", path, doc.Region, n)
	}

	if strings.EqualFold(global.store, storeMemory) {
		if err := s.Memory.Save(global.memoryFile); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "ingested %d files, %d chunks\n", len(paths), total)
	return nil
}
