package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the universe by benchmark-relative strength",
	Long: `Computes the cross-sectional ranking of the configured universe for one
trading date. History is served from the store when the cached span
covers the window, otherwise it is filled from the provider first.

Example:
  go run ./cmd/sectorpulse rank
  go run ./cmd/sectorpulse rank --date 2025-08-29`,
	RunE: runRank,
}

var rankDate string

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().StringVar(&rankDate, "date", "", "ranking date (YYYY-MM-DD, default today)")
}

func runRank(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	asOf := time.Now()
	if rankDate != "" {
		asOf, err = time.Parse(contracts.DateLayout, rankDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	result, err := d.engine.Rank(ctx, d.cfg.Ranking.Universe, d.cfg.Ranking.BenchmarkID, asOf)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	fmt.Printf("Ranking as of %s (%d ranked, %d skipped)\n\n",
		result.AsOf.Format(contracts.DateLayout), len(result.Rows), len(result.Skipped))
	fmt.Printf("%4s  %-8s  %-20s  %9s  %9s  %9s\n",
		"RANK", "ID", "NAME", "ALPHA 2D", "ALPHA 5D", "SCORE")
	for _, row := range result.Rows {
		fmt.Printf("%4d  %-8s  %-20s  %9s  %9s  %9s\n",
			row.Rank, row.ID, row.Name,
			formatPct(row.Alpha2D), formatPct(row.Alpha5D), formatPct(row.Score))
	}

	if len(result.Skipped) > 0 {
		fmt.Println("\nSkipped:")
		for _, skip := range result.Skipped {
			fmt.Printf("  %-8s  %s\n", skip.ID, skip.Reason)
		}
	}
	if result.Incomplete {
		fmt.Println("\nWARNING: run was cut short, result is partial")
	}
	return nil
}

// formatPct renders an optional ratio as a percentage
func formatPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *v*100)
}
