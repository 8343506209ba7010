package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glenross/fundly-bot/internal/pipeline"
)

var (
	backfillLimit   int
	backfillWorkers int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Recompute normalized columns for stored leads",
	Long:  "Re-runs the parsers and the program rules over every stored lead's raw fields and rewrites the normalized columns and filter_success. Run after a rule or parser change.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		leads, err := st.ListLeads(ctx, backfillLimit)
		if err != nil {
			return err
		}
		zap.L().Info("backfilling leads", zap.Int("count", len(leads)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(backfillWorkers)
		for _, lead := range leads {
			lead := lead
			g.Go(func() error {
				next := pipeline.Reassemble(lead)
				if _, err := st.UpsertLead(gctx, next); err != nil {
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("backfill complete", zap.Int("updated", len(leads)))
		return nil
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 10000, "max leads to backfill")
	backfillCmd.Flags().IntVar(&backfillWorkers, "workers", 4, "concurrent upserts")
	rootCmd.AddCommand(backfillCmd)
}
