package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/syncer"
)

// Trigger labels for worker runs.
const (
	TriggerNightly = "nightly"
	TriggerPoll    = "poll"
	TriggerKickoff = "kickoff"
	TriggerStartup = "startup"
)

// SyncRunner runs a sync pass. Implemented by syncer.Syncer.
type SyncRunner interface {
	SyncAll(ctx context.Context, competitions []string, opts syncer.Options) ([]*syncer.Result, error)
}

// KickoffPlanner returns the kick-off times after since of matches that are not
// finished yet, to schedule follow-up syncs for.
type KickoffPlanner func(ctx context.Context, since time.Time) ([]time.Time, error)

// Config controls when the worker syncs.
type Config struct {
	// NightlyCron is the standard cron line of the nightly pass.
	NightlyCron string
	// PollInterval adds a periodic pass. Zero disables it.
	PollInterval time.Duration
	// Offsets after kick-off at which a one-shot pass runs.
	Offsets      []time.Duration
	Competitions []string
	Location     *time.Location
}

// Scheduler runs sync passes nightly, periodically and shortly after each
// scheduled kick-off. Passes never overlap.
type Scheduler struct {
	cfg      Config
	runner   SyncRunner
	planner  KickoffPlanner
	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
	now      func() time.Time

	runMu sync.Mutex

	triggerMu sync.Mutex
	triggers  []cron.EntryID
}

// NewScheduler creates a new scheduler instance. planner may be nil.
func NewScheduler(cfg Config, runner SyncRunner, planner KickoffPlanner) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		planner:  planner,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.NightlyCron, func() {
		s.Run(ctx, TriggerNightly)
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly sync: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.NightlyCron).
		Msg("Nightly sync scheduled")

	if err := s.Replan(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to plan kick-off triggers")
	}

	if s.cfg.PollInterval > 0 {
		s.ticker = time.NewTicker(s.cfg.PollInterval)
		log.Info().
			Dur("interval", s.cfg.PollInterval).
			Msg("Periodic sync started")
		go s.poll(ctx)
	}

	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.stopChan)

	s.runMu.Lock()
	defer s.runMu.Unlock()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping periodic sync")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping periodic sync")
			return
		case <-s.ticker.C:
			s.Run(ctx, TriggerPoll)
		}
	}
}

// Run performs one sync pass and re-plans the kick-off triggers afterwards.
func (s *Scheduler) Run(ctx context.Context, trigger string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	log.Info().Str("trigger", trigger).Msg("Running sync pass")

	results, err := s.runner.SyncAll(ctx, s.cfg.Competitions, syncer.Options{})
	metrics.RecordWorkerRun(trigger, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("trigger", trigger).Msg("Sync pass finished with errors")
	}

	log.Info().
		Str("trigger", trigger).
		Int("competitions", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Sync pass complete")

	if err := s.Replan(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to plan kick-off triggers")
	}
}

// Replan replaces every pending kick-off trigger with a fresh plan.
func (s *Scheduler) Replan(ctx context.Context) error {
	if s.planner == nil {
		return nil
	}
	now := s.now().In(s.cfg.Location)
	// Matches already under way still have later follow-ups pending.
	kickoffs, err := s.planner(ctx, now.Add(-MaxOffset(s.cfg.Offsets)))
	if err != nil {
		return err
	}

	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	for _, id := range s.triggers {
		s.cron.Remove(id)
	}
	s.triggers = s.triggers[:0]

	for _, at := range TriggerTimes(kickoffs, s.cfg.Offsets, now) {
		id := s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() {
			s.Run(ctx, TriggerKickoff)
		}))
		s.triggers = append(s.triggers, id)
	}

	metrics.ScheduledTriggers.Set(float64(len(s.triggers)))
	log.Info().
		Int("kickoffs", len(kickoffs)).
		Int("triggers", len(s.triggers)).
		Msg("Kick-off triggers planned")
	return nil
}

// PendingTriggers returns how many one-shot triggers are registered.
func (s *Scheduler) PendingTriggers() int {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	return len(s.triggers)
}

// onceSchedule fires a single time. A zero Next makes cron drop the entry.
type onceSchedule struct {
	at time.Time
}

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
