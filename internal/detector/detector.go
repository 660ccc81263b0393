// Package detector decides which schedule sections may have changed since the last sync.
package detector

import (
	"sort"
	"time"

	"jpoints/ingestion/internal/models"
)

// MatchDuration is the assumed length of a match, kick-off to final whistle.
const MatchDuration = 2 * time.Hour

// SectionsToUpdate returns the sorted sections holding at least one match that
// could have finished after since and had started by until. Matches without a
// date are ignored; an undecided kick-off time counts as midnight.
func SectionsToUpdate(ds models.Dataset, since, until time.Time, loc *time.Location) []int {
	seen := make(map[int]struct{})
	for i := range ds {
		kickoff, ok := ds[i].Kickoff(loc)
		if !ok {
			continue
		}
		end := kickoff.Add(MatchDuration)
		if end.Before(since) || kickoff.After(until) {
			continue
		}
		seen[ds[i].SectionNo] = struct{}{}
	}

	sections := make([]int, 0, len(seen))
	for s := range seen {
		sections = append(sections, s)
	}
	sort.Ints(sections)
	return sections
}

// PendingKickoffs returns the kick-off times after now of matches that are not
// finished and have a known start time, in chronological order.
func PendingKickoffs(ds models.Dataset, now time.Time, loc *time.Location) []time.Time {
	var out []time.Time
	for i := range ds {
		m := &ds[i]
		if m.IsFinished() || !m.HasStartTime() {
			continue
		}
		kickoff, ok := m.Kickoff(loc)
		if !ok || !kickoff.After(now) {
			continue
		}
		out = append(out, kickoff)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
