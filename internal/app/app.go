// Package app assembles the sync engine from runtime configuration.
package app

import (
	"context"
	"fmt"
	"strconv"

	"jpoints/ingestion/internal/adapter"
	"jpoints/ingestion/internal/config"
	"jpoints/ingestion/internal/ledger"
	"jpoints/ingestion/internal/publisher"
	"jpoints/ingestion/internal/repository"
	"jpoints/ingestion/internal/seasonmap"
	"jpoints/ingestion/internal/store"
	"jpoints/ingestion/internal/syncer"

	"github.com/rs/zerolog/log"
)

// App is a fully wired sync engine
type App struct {
	Config   *config.Config
	Resolver *seasonmap.Resolver
	Syncer   *syncer.Syncer
	Database *repository.Database

	closers []func()
}

// Options adjusts wiring for one process
type Options struct {
	// Debug logs every differing cell on rewrite.
	Debug bool
	// SkipSinks leaves Redis and Postgres out even when enabled.
	SkipSinks bool
}

// New loads the season map and builds every component from cfg
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	doc, err := seasonmap.Load(cfg.SeasonMapFile)
	if err != nil {
		return nil, err
	}
	resolver := seasonmap.NewResolver(doc, cfg.GroupKey, cfg.Season)
	loc := cfg.Location()

	l := ledger.New(cfg.LedgerFile, loc)
	writer := store.NewWriter(l)
	writer.SetDebug(opts.Debug)

	a := &App{Config: cfg, Resolver: resolver}

	if !opts.SkipSinks {
		if err := a.attachSinks(ctx, writer); err != nil {
			a.Close()
			return nil, err
		}
	}

	registry := adapter.NewRegistry(adapter.Defaults{
		JLeagueURLFormat: cfg.JLeagueURLFormat,
		HTTPTimeout:      cfg.HTTPTimeout,
		UserAgent:        cfg.UserAgent,
		FeedRetries:      cfg.FeedMaxRetries,
		FeedRetryDelay:   cfg.FeedRetryDelay,
	})

	a.Syncer = syncer.New(syncer.Config{
		Resolver:   resolver,
		Ledger:     l,
		Writer:     writer,
		Sources:    registry,
		PathFormat: cfg.DatasetPathFormat,
		Location:   loc,
	})

	log.Info().
		Str("season_map", cfg.SeasonMapFile).
		Str("group", cfg.GroupKey).
		Str("season", cfg.Season).
		Strs("competitions", resolver.Competitions()).
		Msg("Sync engine ready")

	return a, nil
}

func (a *App) attachSinks(ctx context.Context, writer *store.Writer) error {
	cfg := a.Config

	if cfg.EnableRedis {
		client, err := publisher.NewRedisClient(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without update events")
		} else {
			a.closers = append(a.closers, func() { client.Close() })
			writer.AddSink(publisher.NewRedisStreamSink(client, cfg.RedisStream, cfg.RedisStreamMaxLen))
			log.Info().Str("stream", cfg.RedisStream).Msg("Redis update events enabled")
		}
	}

	if cfg.EnableArchive {
		db, err := repository.NewDatabase(ctx, repository.Config{
			Host:     cfg.DatabaseHost,
			Port:     strconv.Itoa(cfg.DatabasePort),
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			return fmt.Errorf("failed to open archive database: %w", err)
		}
		a.Database = db
		a.closers = append(a.closers, db.Close)

		if err := db.Matches.EnsureSchema(ctx); err != nil {
			return err
		}
		writer.AddSink(repository.NewArchiveSink(db))
		log.Info().Msg("Postgres archive enabled")
	}

	return nil
}

// Competitions returns the configured competitions, or every competition of the group
func (a *App) Competitions(args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(a.Config.Competitions) > 0 {
		return a.Config.Competitions
	}
	return a.Resolver.Competitions()
}

// Close releases sink connections
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
