package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// velocityCmd represents the velocity command
var velocityCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Rank the universe and report rank movement across sessions",
	Long: `Ranks the universe on the most recent trading session and on up to two
sessions before it, then reports how each entity's rank moved. A
positive change means the rank improved.

Example:
  go run ./cmd/sectorpulse velocity
  go run ./cmd/sectorpulse velocity --date 2025-08-29`,
	RunE: runVelocity,
}

var velocityDate string

func init() {
	rootCmd.AddCommand(velocityCmd)
	velocityCmd.Flags().StringVar(&velocityDate, "date", "", "anchor date (YYYY-MM-DD, default today)")
}

func runVelocity(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	asOf := time.Now()
	if velocityDate != "" {
		asOf, err = time.Parse(contracts.DateLayout, velocityDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	report, err := d.composer.Velocity(ctx, d.cfg.Ranking.Universe, d.cfg.Ranking.BenchmarkID, asOf)
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}

	fmt.Printf("Velocity over %d session(s):", len(report.ResolvedDates))
	for _, date := range report.ResolvedDates {
		fmt.Printf(" %s", date.Format(contracts.DateLayout))
	}
	fmt.Printf("\n\n%4s  %-8s  %-20s  %9s  %7s  %7s\n",
		"RANK", "ID", "NAME", "SCORE", "CHG 1D", "CHG 2D")
	for _, row := range report.Rows {
		fmt.Printf("%4d  %-8s  %-20s  %9s  %7s  %7s\n",
			row.CurrentRank, row.ID, row.Name,
			formatPct(row.Score), formatChange(row.Change1D), formatChange(row.Change2D))
	}

	if len(report.Skipped) > 0 {
		fmt.Println("\nSkipped:")
		for _, skip := range report.Skipped {
			fmt.Printf("  %-8s  %s\n", skip.ID, skip.Reason)
		}
	}
	if report.Incomplete {
		fmt.Println("\nWARNING: run was cut short, report is partial")
	}
	return nil
}

// formatChange renders an optional rank delta; absent means the entity was
// not ranked on that session
func formatChange(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+d", *v)
}
