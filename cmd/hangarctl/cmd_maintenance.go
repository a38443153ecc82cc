package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hangarlinks/hangarlinks/internal/pkg/airports"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

var (
	backfillBatch int
	airportsCSV   string
)

var backfillCoordsCmd = &cobra.Command{
	Use:   "backfill-coords",
	Short: "Set coordinates on listings that have none",
	Long: `Resolve every listing's airport code to coordinates for radius search.
Unknown airports get the default coordinates so they are not retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repos := connect()
		if airportsCSV == "" {
			airportsCSV = env.GetEnv("AIRPORTS_CSV", "")
		}
		if airportsCSV != "" {
			if err := airports.LoadCSVFile(airportsCSV); err != nil {
				return fmt.Errorf("load airports: %w", err)
			}
		}
		res, err := airports.Backfill(repos.Listing, backfillBatch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d listing(s), %d with unknown airports.\n", res.Updated, res.Unknown)
		return nil
	},
}

var expireFeaturedCmd = &cobra.Command{
	Use:   "expire-featured",
	Short: "Clear featured boosts whose period has ended",
	RunE: func(cmd *cobra.Command, args []string) error {
		repos := connect()
		n, err := repos.Listing.ExpireFeatured(time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d featured listing(s).\n", n)
		return nil
	},
}

func init() {
	backfillCoordsCmd.Flags().IntVar(&backfillBatch, "batch", 500, "listings per batch")
	backfillCoordsCmd.Flags().StringVar(&airportsCSV, "airports", "", "extra airports CSV (defaults to AIRPORTS_CSV)")
}
