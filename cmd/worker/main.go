package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"jpoints/ingestion/internal/app"
	"jpoints/ingestion/internal/config"
	"jpoints/ingestion/internal/logging"
	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()

	logCloser := logging.Setup(logging.Options{
		Env:   cfg.AppEnv,
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	defer logCloser.Close()

	log.Info().Msg("Starting J.League match sync worker")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("season_map", cfg.SeasonMapFile).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sync engine")
	}
	defer a.Close()

	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort, a)
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	competitions := a.Competitions(nil)
	sched := scheduler.NewScheduler(scheduler.Config{
		NightlyCron:  cfg.NightlySyncCron,
		PollInterval: cfg.PollInterval,
		Offsets:      cfg.KickoffOffsets,
		Competitions: competitions,
		Location:     cfg.CronLocation(),
	}, a.Syncer, scheduler.DatasetPlanner(a.Syncer, competitions, cfg.Location()))

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial sync...")
		sched.Run(ctx, scheduler.TriggerStartup)
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	if cfg.EnableScheduler {
		log.Info().Msg("Shutting down scheduler...")
		sched.Stop()
	}

	log.Info().Msg("Worker shutdown complete")
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int, a *app.App) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if a.Database != nil {
			if err := a.Database.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Int("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
