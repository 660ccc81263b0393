package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/detector"
	"jpoints/ingestion/internal/seasonmap"
	"jpoints/ingestion/internal/store"
)

// DefaultCronLine is the daily pass that always runs.
const DefaultCronLine = "0 16 * * *"

// DefaultOffsets are the follow-up delays after kick-off: around full time,
// and again once late results are usually published.
var DefaultOffsets = []time.Duration{50 * time.Minute, 100 * time.Minute}

// MaxOffset returns the largest follow-up delay.
func MaxOffset(offsets []time.Duration) time.Duration {
	var longest time.Duration
	for _, off := range offsets {
		if off > longest {
			longest = off
		}
	}
	return longest
}

// TriggerTimes returns kickoff+offset instants after now, sorted and unique.
func TriggerTimes(kickoffs []time.Time, offsets []time.Duration, now time.Time) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, k := range kickoffs {
		for _, off := range offsets {
			at := k.Add(off)
			if !at.After(now) {
				continue
			}
			if _, dup := seen[at.Unix()]; dup {
				continue
			}
			seen[at.Unix()] = struct{}{}
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// CronLines renders the default line followed by one
// "minute hour day month *" line per trigger, in loc.
func CronLines(kickoffs []time.Time, offsets []time.Duration, now time.Time, loc *time.Location) []string {
	lines := []string{DefaultCronLine}
	seen := map[string]struct{}{DefaultCronLine: {}}
	for _, at := range TriggerTimes(kickoffs, offsets, now) {
		at = at.In(loc)
		line := fmt.Sprintf("%d %d %d %d *", at.Minute(), at.Hour(), at.Day(), int(at.Month()))
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	return lines
}

// DatasetLister resolves the dataset files of a competition's current season.
type DatasetLister interface {
	DatasetPaths(competition string) ([]string, error)
}

// DatasetPlanner builds a KickoffPlanner that reads the current datasets of
// competitions and collects the kick-offs of unfinished matches.
func DatasetPlanner(lister DatasetLister, competitions []string, loc *time.Location) KickoffPlanner {
	return func(_ context.Context, since time.Time) ([]time.Time, error) {
		return PendingKickoffs(lister, competitions, since, loc)
	}
}

// PendingKickoffs gathers kick-offs after since across competitions. Competitions
// without a current season entry and datasets not yet written are ignored.
func PendingKickoffs(lister DatasetLister, competitions []string, since time.Time, loc *time.Location) ([]time.Time, error) {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, comp := range competitions {
		paths, err := lister.DatasetPaths(comp)
		if errors.Is(err, seasonmap.ErrNoSeasonEntry) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve datasets of %s: %w", comp, err)
		}

		for _, path := range paths {
			ds, err := store.ReadDataset(path)
			if errors.Is(err, os.ErrNotExist) {
				log.Debug().Str("dataset", path).Msg("Dataset not written yet")
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, k := range detector.PendingKickoffs(ds, since, loc) {
				if _, dup := seen[k.Unix()]; dup {
					continue
				}
				seen[k.Unix()] = struct{}{}
				out = append(out, k)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}
