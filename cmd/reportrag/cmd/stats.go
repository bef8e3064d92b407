package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/siherrmann/reportrag/model"
	"github.com/spf13/cobra"
)

// RegionStats is the JSON output of the stats command
type RegionStats struct {
	Counts       map[model.Region]int      `json:"counts"`
	ContentTypes map[model.ContentType]int `json:"content_types"`
	Total        int                       `json:"total"`
	Missing      []model.Region            `json:"missing"`
}

func newStatsCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored chunks per region and content type",
		Long: `Display the number of stored chunks per region, the number per content
type (target, title, summary, content) and the regions without any report.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, global, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, global *globalOptions, jsonOutput bool) error {
	s, err := openService(cmd, global, false)
	if err != nil {
		return err
	}
	defer s.Close()

	counts, err := s.RegionChunkCounts(cmd.Context())
	if err != nil {
		return err
	}

	contentTypes, err := s.ContentTypeCounts(cmd.Context())
	if err != nil {
		return err
	}

	stats := RegionStats{Counts: counts, ContentTypes: contentTypes, Missing: []model.Region{}}
	for _, region := range model.Regions() {
		if counts[region] == 0 {
			stats.Missing = append(stats.Missing, region)
		}
	}
	for _, n := range counts {
		stats.Total += n
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	for _, region := range model.Regions() {
		if n := counts[region]; n > 0 {
			fmt.Fprintf(out, "%-16s %d\n", region, n)
		}
	}
	fmt.Fprintf(out, "%-16s %d\n", "total", stats.Total)
	fmt.Fprintln(out)
	for _, contentType := range model.ContentTypes() {
		fmt.Fprintf(out, "%-16s %d\n", contentType, contentTypes[contentType])
	}
	if len(stats.Missing) > 0 {
		fmt.Fprintf(out, "missing: %v\n", stats.Missing)
	}
	return nil
}
