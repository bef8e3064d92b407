package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/siherrmann/reportrag/model"
	"github.com/spf13/cobra"
)

// queryOptions holds CLI flags for query
type queryOptions struct {
	regions     []string
	budget      int
	format      string
	diagnostics bool
}

func newQueryCmd(global *globalOptions) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Assemble the context for a question",
		Long: `Classify the question, search the relevant regions and print the
assembled context.

Examples:
  reportrag query "河南省2024年经济增长目标是多少"
  reportrag query "Compare Guangdong and Jiangsu on the digital economy"
  reportrag query "housing policy" --region Beijing --region Shanghai
  reportrag query "各省的粮食产量目标" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, global, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.regions, "region", "r", nil, "Search these regions instead of the ones named in the question (repeatable)")
	cmd.Flags().IntVar(&opts.budget, "budget", 0, "Character budget overriding the configured one")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.diagnostics, "diagnostics", false, "Print intent, plan and warnings after the context")

	return cmd
}

func runQuery(cmd *cobra.Command, global *globalOptions, question string, opts queryOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", opts.format)
	}

	s, err := openService(cmd, global, true)
	if err != nil {
		return err
	}
	defer s.Close()

	req := model.QueryRequest{Query: question}
	for _, region := range opts.regions {
		req.RegionHint = append(req.RegionHint, model.Region(region))
	}
	if opts.budget != 0 {
		req.ForceBudget = &opts.budget
	}

	response, err := s.Query(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		for _, c := range response.Result.Chunks {
			c.Embedding = nil
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(response)
	}

	fmt.Fprintln(out, response.Context)
	if opts.diagnostics {
		d := response.Diagnostics
		fmt.Fprintln(out)
		fmt.Fprintf(out, "query:   %s\n", d.QueryID)
		fmt.Fprintf(out, "intent:  %s\n", d.Intent)
		fmt.Fprintf(out, "plan:    k=%d budget=%d window=%d fairness=%s\n",
			d.Plan.PerRegionCandidateCount, d.Plan.MaxTotalChars, d.Plan.AdjacencyWindow, d.Plan.FairnessMode)
		fmt.Fprintf(out, "result:  %d of %d candidates, %d chars\n",
			response.Result.SelectedCount, response.Result.CandidateCount, response.Result.TotalChars)
		fmt.Fprintf(out, "elapsed: %s\n", d.Elapsed)
		fmt.Fprintln(out, "sources:")
		for _, c := range response.Result.Chunks {
			fmt.Fprintf(out, "  %s\n", describeChunk(c))
		}
	}

	warn := color.New(color.FgYellow)
	for _, w := range response.Diagnostics.Warnings {
		warn.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	return nil
}

// describeChunk renders one selected chunk as region, title, ordinal, span,
// content type and score
func describeChunk(c *model.ScoredChunk) string {
	title, ok := c.Metadata.String("title")
	if !ok {
		title = c.SourceDocID.String()
	}
	span := ""
	if start, ok := c.Metadata.Int("start_pos"); ok {
		if end, ok := c.Metadata.Int("end_pos"); ok {
			span = fmt.Sprintf(" [%d-%d]", start, end)
		}
	}
	return fmt.Sprintf("%s %s #%d%s %s %s %.3f", c.Region, title, c.Ordinal, span, model.ContentTypeOf(c.Chunk), c.RetrievalMethod, c.SimilarityScore)
}
