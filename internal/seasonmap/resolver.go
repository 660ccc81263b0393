package seasonmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultStartMonth applies when neither the season, competition nor group sets one.
const DefaultStartMonth = 7

var (
	// ErrNoSeasonEntry means the competition has no entry for the season; skip it this run.
	ErrNoSeasonEntry = errors.New("no season entry")
	// ErrUnknownCompetition means the competition is not in the season map.
	ErrUnknownCompetition = errors.New("unknown competition")
)

// SubSeason is one parallel group of a split season, synced as its own dataset.
type SubSeason struct {
	Key          string // season key, e.g. "2026East"
	Group        string // key suffix after the season label, e.g. "East"
	TeamCount    int
	Teams        []string
	GroupDisplay string
	URLCategory  string
}

// Resolver answers season questions for one group of competitions.
type Resolver struct {
	doc      Document
	groupKey string
	season   string
}

// NewResolver creates a resolver for groupKey. A non-empty season pins the
// season label instead of deriving it from the date.
func NewResolver(doc Document, groupKey, season string) *Resolver {
	return &Resolver{doc: doc, groupKey: groupKey, season: season}
}

func (r *Resolver) group() *GroupEntry {
	if g := r.doc[r.groupKey]; g != nil {
		return g
	}
	return &GroupEntry{}
}

// Competitions lists the competitions of the group, sorted.
func (r *Resolver) Competitions() []string {
	out := make([]string, 0, len(r.group().Competitions))
	for k := range r.group().Competitions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Competition returns the entry for a competition.
func (r *Resolver) Competition(competition string) (*CompetitionEntry, error) {
	comp, ok := r.group().Competitions[competition]
	if !ok || comp == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownCompetition, r.groupKey, competition)
	}
	return comp, nil
}

// Season returns the entry stored under exactly this season key.
func (r *Resolver) Season(competition, season string) (*SeasonEntry, error) {
	comp, err := r.Competition(competition)
	if err != nil {
		return nil, err
	}
	entry, ok := comp.Seasons[season]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNoSeasonEntry, competition, season)
	}
	return entry, nil
}

// subSeasonKeys returns the sorted keys that extend the season label.
func subSeasonKeys(comp *CompetitionEntry, season string) []string {
	var keys []string
	for k := range comp.Seasons {
		if k != season && strings.HasPrefix(k, season) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SubSeasons resolves how a competition season is split.
// It returns ErrNoSeasonEntry when neither the bare season key nor any prefixed
// key exists, an empty list for a single season, and one descriptor per group
// for a split season.
func (r *Resolver) SubSeasons(competition, season string) ([]SubSeason, error) {
	comp, err := r.Competition(competition)
	if err != nil {
		return nil, err
	}

	keys := subSeasonKeys(comp, season)
	_, hasBare := comp.Seasons[season]
	if !hasBare && len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoSeasonEntry, competition, season)
	}
	if hasBare && len(keys) <= 1 {
		return []SubSeason{}, nil
	}

	subs := make([]SubSeason, 0, len(keys))
	for _, k := range keys {
		entry := comp.Seasons[k]
		subs = append(subs, SubSeason{
			Key:          k,
			Group:        strings.TrimPrefix(k, season),
			TeamCount:    entry.TeamCount,
			Teams:        entry.Teams,
			GroupDisplay: entry.GroupDisplay(),
			URLCategory:  entry.URLCategory(),
		})
	}
	return subs, nil
}

// representative returns the bare season entry, or the first sub-season entry.
func representative(comp *CompetitionEntry, season string) *SeasonEntry {
	if e, ok := comp.Seasons[season]; ok {
		return e
	}
	if keys := subSeasonKeys(comp, season); len(keys) > 0 {
		return comp.Seasons[keys[0]]
	}
	return nil
}

// defaultStartMonth cascades competition → group → DefaultStartMonth.
func (r *Resolver) defaultStartMonth(comp *CompetitionEntry) int {
	if comp != nil && comp.SeasonStartMonth != 0 {
		return comp.SeasonStartMonth
	}
	if g := r.group(); g.SeasonStartMonth != 0 {
		return g.SeasonStartMonth
	}
	return DefaultStartMonth
}

// StartMonth cascades season entry → competition → group → DefaultStartMonth.
func (r *Resolver) StartMonth(competition, season string) int {
	comp, err := r.Competition(competition)
	if err != nil {
		return r.defaultStartMonth(nil)
	}
	if entry := representative(comp, season); entry != nil {
		if m, ok := entry.StartMonth(); ok {
			return m
		}
	}
	return r.defaultStartMonth(comp)
}

// CurrentSeason returns the season label a competition is in at now.
// A pinned season wins. Otherwise the label is derived with the competition's
// start month; when no entry matches, the start months declared by the
// competition's own season entries are tried in turn.
func (r *Resolver) CurrentSeason(competition string, now time.Time) (string, error) {
	if r.season != "" {
		return r.season, nil
	}

	comp, err := r.Competition(competition)
	if err != nil {
		return "", err
	}

	month := r.defaultStartMonth(comp)
	label := SeasonLabel(now, month)
	if entry := representative(comp, label); entry != nil {
		if m, ok := entry.StartMonth(); ok && m != month {
			return SeasonLabel(now, m), nil
		}
		return label, nil
	}

	for _, m := range declaredStartMonths(comp) {
		candidate := SeasonLabel(now, m)
		if entry := representative(comp, candidate); entry != nil {
			if em, ok := entry.StartMonth(); ok && em == m {
				return candidate, nil
			}
		}
	}
	return label, nil
}

func declaredStartMonths(comp *CompetitionEntry) []int {
	seen := make(map[int]struct{})
	for _, entry := range comp.Seasons {
		if m, ok := entry.StartMonth(); ok {
			seen[m] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// SeasonLabel names the season a date belongs to. With a January start the
// label is the four-digit year; otherwise it is "YY-YY" for the season that
// started in the most recent occurrence of startMonth on or before date.
func SeasonLabel(date time.Time, startMonth int) string {
	if startMonth <= 1 || startMonth > 12 {
		return fmt.Sprintf("%04d", date.Year())
	}
	year := date.Year()
	if int(date.Month()) < startMonth {
		year--
	}
	return fmt.Sprintf("%02d-%02d", year%100, (year+1)%100)
}
