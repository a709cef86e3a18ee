package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

var (
	searchTopK      int
	searchThreshold float64
	searchHybrid    bool
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [plan-id] [query]",
	Short: "Search the policy text of a plan",
	Long: `Embeds the query and returns the most similar policy chunks of one plan.
With --hybrid, literal keyword and synonym matches are merged in as well.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", domain.DefaultSearchTopK, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", domain.DefaultSimilarityThreshold, "minimum similarity score")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "combine keyword and vector search")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	threshold := searchThreshold
	results, err := svc.Assistant.Retrieve(cmd.Context(), domain.RetrieveRequest{
		PlanID:    args[0],
		Query:     args[1],
		TopK:      searchTopK,
		Threshold: &threshold,
		Hybrid:    searchHybrid,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s#%d (%.2f)\n", i+1, r.DocumentID, r.ChunkIndex, r.Score)
		fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", snippet(r.ChunkText, 160))
	}
	return nil
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
