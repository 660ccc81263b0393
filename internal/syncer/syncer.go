// Package syncer runs the incremental synchronization of competition datasets:
// decide what may have changed, fetch it once per upstream feed, route it into
// each dataset and persist only real changes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/ledger"
	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/seasonmap"
	"jpoints/ingestion/internal/store"
)

// DefaultPathFormat names dataset files by season and competition.
const DefaultPathFormat = "docs/csv/{season}_allmatch_result-{competition}.csv"

// SourceProvider builds the section source a competition is published through.
type SourceProvider interface {
	Source(competition string, entry *seasonmap.CompetitionEntry) (fetcher.SectionSource, error)
}

// Config holds everything a Syncer needs. Nothing is read from globals.
type Config struct {
	Resolver *seasonmap.Resolver
	Ledger   *ledger.Ledger
	Writer   *store.Writer
	Sources  SourceProvider
	// PathFormat may contain {season} and {competition}.
	PathFormat string
	Location   *time.Location
	Now        func() time.Time
}

// Options control one sync pass.
type Options struct {
	// Sections forces an explicit section list instead of detection.
	Sections []int
	// Force refetches every section and replaces the datasets outright.
	Force bool
}

// DatasetResult reports what happened to one dataset file.
type DatasetResult struct {
	Key      string
	Path     string
	Sections []int
	Result   store.WriteResult
	Skipped  bool
	Reason   string
}

// Result reports one competition's pass.
type Result struct {
	Competition string
	Season      string
	Skipped     bool
	Datasets    []DatasetResult
}

// Syncer synchronizes competitions one at a time.
type Syncer struct {
	cfg Config
}

// New creates a Syncer.
func New(cfg Config) *Syncer {
	if cfg.PathFormat == "" {
		cfg.PathFormat = DefaultPathFormat
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Syncer{cfg: cfg}
}

// DatasetPath returns the file for a competition season (or sub-season key).
func (s *Syncer) DatasetPath(competition, seasonKey string) string {
	return filepath.Clean(strings.NewReplacer(
		"{season}", seasonKey,
		"{competition}", competition,
	).Replace(s.cfg.PathFormat))
}

// SyncAll synchronizes competitions in order. An empty list means every
// competition of the configured group. Failures do not stop later
// competitions; they are joined into the returned error.
func (s *Syncer) SyncAll(ctx context.Context, competitions []string, opts Options) ([]*Result, error) {
	if len(competitions) == 0 {
		competitions = s.cfg.Resolver.Competitions()
	}

	runID := uuid.New().String()
	ctx = store.WithRunID(ctx, runID)
	start := time.Now()

	log.Info().
		Str("run_id", runID).
		Strs("competitions", competitions).
		Bool("force", opts.Force).
		Ints("sections", opts.Sections).
		Msg("Starting sync run")

	var (
		results []*Result
		errs    []error
	)
	for _, comp := range competitions {
		compStart := time.Now()
		res, err := s.SyncCompetition(ctx, comp, opts)
		if err != nil {
			metrics.RecordSync("competition", "error", time.Since(compStart).Seconds())
			metrics.RecordError("syncer", "competition")
			log.Error().
				Err(err).
				Str("run_id", runID).
				Str("competition", comp).
				Msg("Competition sync failed")
			errs = append(errs, fmt.Errorf("%s: %w", comp, err))
			continue
		}
		metrics.RecordSync("competition", "success", time.Since(compStart).Seconds())
		results = append(results, res)
	}

	status := "success"
	if len(errs) > 0 {
		status = "error"
	}
	metrics.RecordSync("run", status, time.Since(start).Seconds())

	log.Info().
		Str("run_id", runID).
		Int("competitions", len(competitions)).
		Int("failed", len(errs)).
		Dur("duration", time.Since(start)).
		Msg("Sync run complete")

	return results, errors.Join(errs...)
}

// SyncCompetition runs one pass for a competition's current season.
func (s *Syncer) SyncCompetition(ctx context.Context, competition string, opts Options) (*Result, error) {
	now := s.cfg.Now().In(s.cfg.Location)

	entry, err := s.cfg.Resolver.Competition(competition)
	if err != nil {
		return nil, err
	}
	season, err := s.cfg.Resolver.CurrentSeason(competition, now)
	if err != nil {
		return nil, err
	}

	members, err := s.members(competition, season)
	if errors.Is(err, seasonmap.ErrNoSeasonEntry) {
		metrics.RecordSkip(competition)
		log.Info().
			Str("run_id", store.RunID(ctx)).
			Str("competition", competition).
			Str("season", season).
			Msg("No season entry, skipping competition")
		return &Result{Competition: competition, Season: season, Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}

	source, err := s.cfg.Sources.Source(competition, entry)
	if err != nil {
		return nil, err
	}
	orchestrator := fetcher.NewOrchestrator(source)

	log.Info().
		Str("run_id", store.RunID(ctx)).
		Str("competition", competition).
		Str("season", season).
		Int("datasets", len(members)).
		Msg("Checking competition")

	result := &Result{Competition: competition, Season: season}
	for _, group := range groupByFetchPath(members) {
		datasets, err := s.syncGroup(ctx, orchestrator, competition, group, opts, now)
		if err != nil {
			return nil, err
		}
		result.Datasets = append(result.Datasets, datasets...)
	}
	return result, nil
}

// DatasetPaths lists the dataset files of a competition's current season.
func (s *Syncer) DatasetPaths(competition string) ([]string, error) {
	season, err := s.cfg.Resolver.CurrentSeason(competition, s.cfg.Now().In(s.cfg.Location))
	if err != nil {
		return nil, err
	}
	members, err := s.members(competition, season)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(members))
	for _, m := range members {
		paths = append(paths, s.DatasetPath(competition, m.key))
	}
	return paths, nil
}

// members resolves the datasets of a season: one for a single season, one per
// group for a split season.
func (s *Syncer) members(competition, season string) ([]member, error) {
	subs, err := s.cfg.Resolver.SubSeasons(competition, season)
	if err != nil {
		return nil, err
	}

	if len(subs) == 0 {
		entry, err := s.cfg.Resolver.Season(competition, season)
		if err != nil {
			return nil, err
		}
		return []member{{
			key:       season,
			teamCount: entry.TeamCount,
			fetchPath: fetchPath(competition, entry.URLCategory()),
		}}, nil
	}

	out := make([]member, 0, len(subs))
	for _, sub := range subs {
		out = append(out, member{
			key:          sub.Key,
			teamCount:    sub.TeamCount,
			groupDisplay: sub.GroupDisplay,
			fetchPath:    fetchPath(competition, sub.URLCategory),
			split:        true,
		})
	}
	return out, nil
}

func fetchPath(competition, override string) string {
	if override != "" {
		return override
	}
	return strings.ToLower(competition)
}

// fileExists reports whether path exists. Other stat failures count as present
// so that the later read surfaces them.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
