package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [document-id]",
	Short: "Extract, chunk and embed one stored policy document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := svc.Ingestor.IngestDocument(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "document %s: %d chunks in %d batches (%s)\n",
			report.DocumentID, report.Chunks, report.Batches, report.Duration.Round(time.Millisecond))
		return nil
	},
}

var reingestCmd = &cobra.Command{
	Use:   "reingest [plan-id]",
	Short: "Re-run ingestion for every document of a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := svc.Ingestor.ReingestPlan(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("reingest failed: %w", err)
		}
		total := 0
		for _, doc := range report.Documents {
			total += doc.Chunks
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d chunks\n", doc.DocumentID, doc.Chunks)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s: %d documents, %d chunks\n", report.PlanID, len(report.Documents), total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reingestCmd)
}
