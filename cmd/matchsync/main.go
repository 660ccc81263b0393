// Command matchsync keeps the per-season match CSV datasets in sync with the
// J.League and JFA schedule pages.
//
// Usage:
//
//	matchsync sync                      # every competition of the group
//	matchsync sync J1 J2 --force        # refetch all sections
//	matchsync sync J3 --sections 1-3,5  # explicit sections, merged in
//	matchsync endtimes                  # cron lines for upcoming match ends
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"jpoints/ingestion/internal/app"
	"jpoints/ingestion/internal/config"
	"jpoints/ingestion/internal/logging"

	"github.com/spf13/cobra"
)

var debug bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:          "matchsync",
		Short:        "Incremental J.League schedule sync",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level and show every changed field")

	root.AddCommand(syncCmd())
	root.AddCommand(endtimesCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, installs the logger and wires the engine.
func setup(ctx context.Context, season string, opts app.Options) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if season != "" {
		cfg.Season = season
	}

	closer := logging.Setup(logging.Options{
		Env:   cfg.AppEnv,
		Level: cfg.LogLevel,
		Debug: debug,
		File:  cfg.LogFile,
	})

	opts.Debug = debug
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	return a, func() {
		a.Close()
		closer.Close()
	}, nil
}
