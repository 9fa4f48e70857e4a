package main

import (
	"context"
	"fmt"

	"github.com/dgallion1/lawsearch/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestModel string
	ingestClear bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild every division index from DATA_DIR",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestModel, "embedding-model", "", "Embedding model to switch to (default: EMBEDDING_MODEL)")
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "Delete existing indices before rebuilding")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}

	resp, err := svc.Reingest(ctx, service.IngestRequest{EmbeddingModel: ingestModel, ClearExisting: ingestClear})
	out := cmd.OutOrStdout()
	if resp.RunID != "" {
		fmt.Fprintf(out, "run %s: %s, %d divisions in %.1fs\n", resp.RunID, resp.Status, resp.DivisionsProcessed, resp.ProcessingTime)
		for _, e := range resp.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
	}
	return err
}
