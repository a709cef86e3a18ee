package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	recommendCategory   string
	recommendPriceCents int64
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank active plans for a product",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, closeFn, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		recs, err := svc.Recommender.Recommend(cmd.Context(), recommendCategory, recommendPriceCents)
		if err != nil {
			return fmt.Errorf("recommend failed: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching plans.")
			return nil
		}
		for i, rec := range recs {
			marker := " "
			if rec.Recommended {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%d] %s %s (%.3f)\n", marker, i+1, rec.Plan.CompanyName, rec.Plan.PlanName, rec.ValueScore)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recommendCategory, "category", "", "product category")
	recommendCmd.Flags().Int64Var(&recommendPriceCents, "price-cents", 0, "product price in cents")
	_ = recommendCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(recommendCmd)
}
