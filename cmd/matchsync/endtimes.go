package main

import (
	"fmt"
	"time"

	"jpoints/ingestion/internal/app"
	"jpoints/ingestion/internal/scheduler"

	"github.com/spf13/cobra"
)

func endtimesCmd() *cobra.Command {
	var season string

	cmd := &cobra.Command{
		Use:   "endtimes [competition...]",
		Short: "Print crontab lines for the expected end of every upcoming match",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup(cmd.Context(), season, app.Options{SkipSinks: true})
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := a.Config
			now := time.Now()
			kickoffs, err := scheduler.PendingKickoffs(a.Syncer, a.Competitions(args),
				now.Add(-scheduler.MaxOffset(cfg.KickoffOffsets)), cfg.Location())
			if err != nil {
				return err
			}

			for _, line := range scheduler.CronLines(kickoffs, cfg.KickoffOffsets, now, cfg.CronLocation()) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&season, "season", "", "Season label to read instead of the current one")

	return cmd
}
