package main

import (
	"context"
	"fmt"
	"time"

	"jpoints/ingestion/internal/app"
	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/syncer"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var (
		sections string
		force    bool
		season   string
	)

	cmd := &cobra.Command{
		Use:   "sync [competition...]",
		Short: "Refetch the sections that may have changed and rewrite changed datasets",
		Long: `Checks each competition's datasets against the ledger, fetches only the
sections with matches that may have finished since the last sync, and rewrites a
dataset file only when its content changed.

Without arguments every competition of the configured group is synced. A
competition without an entry for the current season is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := syncer.Options{Force: force}
			if sections != "" {
				list, err := fetcher.ParseSections(sections)
				if err != nil {
					return fmt.Errorf("invalid --sections: %w", err)
				}
				opts.Sections = list
			}

			a, cleanup, err := setup(cmd.Context(), season, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			return runSync(cmd.Context(), a, args, opts)
		},
	}

	cmd.Flags().StringVar(&sections, "sections", "", `Sections to fetch, e.g. "1-3,5"; merged into the existing data`)
	cmd.Flags().BoolVar(&force, "force", false, "Fetch every section and replace the datasets")
	cmd.Flags().StringVar(&season, "season", "", "Season label to sync instead of the current one")

	return cmd
}

func runSync(ctx context.Context, a *app.App, args []string, opts syncer.Options) error {
	start := time.Now()
	results, err := a.Syncer.SyncAll(ctx, a.Competitions(args), opts)

	for _, res := range results {
		if res.Skipped {
			fmt.Printf("%s: skipped (no entry for season %s)\n", res.Competition, res.Season)
			continue
		}
		for _, ds := range res.Datasets {
			outcome := string(ds.Result)
			if ds.Skipped {
				outcome = "skipped: " + ds.Reason
			}
			fmt.Printf("%s %s: %s sections=%v\n", res.Competition, ds.Key, outcome, ds.Sections)
		}
	}

	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("competitions", len(results)).
		Msg("Sync finished")

	if url := a.Config.PushgatewayURL; url != "" {
		if perr := metrics.Push(ctx, url, "matchsync"); perr != nil {
			log.Warn().Err(perr).Str("url", url).Msg("Failed to push metrics")
		}
	}

	return err
}
