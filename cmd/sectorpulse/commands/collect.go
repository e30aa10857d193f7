package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwlim/sectorpulse/internal/collector"
	"github.com/jwlim/sectorpulse/internal/contracts"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect index histories, board members and the trading calendar",
	Long: `Runs one collection pass over the configured universe.

Index histories, board membership snapshots and the trading calendar are
fetched through the cache: windows the store already covers cost no
provider calls.

Example:
  go run ./cmd/sectorpulse collect
  go run ./cmd/sectorpulse collect --as-of 2025-08-29`,
	RunE: runCollect,
}

var collectAsOf string

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVar(&collectAsOf, "as-of", "", "collection date (YYYY-MM-DD, default today)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	asOf := time.Now()
	if collectAsOf != "" {
		asOf, err = time.Parse(contracts.DateLayout, collectAsOf)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	start := time.Now()
	err = d.col.CollectAll(ctx,
		d.cfg.Ranking.Universe,
		d.cfg.Ranking.BenchmarkID,
		defaultExchange,
		asOf,
		collector.Config{
			Workers:     d.cfg.Ranking.FetchWorkers,
			HistoryDays: d.cfg.Ranking.HistoryDays,
		})
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	fmt.Printf("Collection completed in %s (%d indexes + benchmark)\n",
		time.Since(start).Round(time.Millisecond), len(d.cfg.Ranking.Universe))
	return nil
}
