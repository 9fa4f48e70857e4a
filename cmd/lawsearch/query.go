package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/lawsearch/internal/service"
	"github.com/spf13/cobra"
)

var (
	queryEffort    string
	queryDivisions []string
	querySources   bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer one question and print the result",
	Example: `  lawsearch query "How much did FEMA receive for disaster relief?"
  lawsearch query --effort high --division "DEPARTMENT OF DEFENSE" "What is the O&M total?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryEffort, "effort", "e", "", "Effort tier: low, medium or high")
	queryCmd.Flags().StringArrayVarP(&queryDivisions, "division", "d", nil, "Restrict to a division (repeatable)")
	queryCmd.Flags().BoolVar(&querySources, "sources", false, "Print retrieved source passages")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}

	resp, err := svc.ProcessQuery(ctx, service.QueryRequest{
		Question:        strings.Join(args, " "),
		Effort:          queryEffort,
		IncludeSources:  &querySources,
		DivisionsFilter: queryDivisions,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Answer)
	fmt.Fprintf(out, "\n[%s] divisions: %s (%.1fs)\n", resp.QueryID, strings.Join(resp.SelectedDivisions, "; "), resp.ProcessingTime)
	for i, src := range resp.Sources {
		fmt.Fprintf(out, "\n--- source %d: %s (%.2f)\n%s\n", i+1, src.Division, src.Score, src.Content)
	}
	return nil
}
