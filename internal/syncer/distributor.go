package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/detector"
	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/models"
	"jpoints/ingestion/internal/store"
)

// member is one dataset fed from a fetch path.
type member struct {
	key          string
	teamCount    int
	groupDisplay string
	fetchPath    string
	// split datasets are routed by group label and renumbered.
	split bool
}

// fetchGroup is the set of datasets sharing one upstream feed.
type fetchGroup struct {
	fetchPath string
	members   []member
}

// groupByFetchPath keeps the order in which fetch paths first appear.
func groupByFetchPath(members []member) []fetchGroup {
	var groups []fetchGroup
	index := make(map[string]int)
	for _, m := range members {
		i, ok := index[m.fetchPath]
		if !ok {
			i = len(groups)
			index[m.fetchPath] = i
			groups = append(groups, fetchGroup{fetchPath: m.fetchPath})
		}
		groups[i].members = append(groups[i].members, m)
	}
	return groups
}

func (g fetchGroup) maxTeamCount() int {
	n := 0
	for _, m := range g.members {
		if m.teamCount > n {
			n = m.teamCount
		}
	}
	return n
}

// memberState is what is known about a member's dataset before fetching.
type memberState struct {
	member
	path     string
	existing models.Dataset
	// needsFull is set when the file is missing or its sync state is unknown.
	needsFull bool
	sections  []int
}

func (s *Syncer) inspect(competition string, m member, now time.Time) memberState {
	st := memberState{member: m, path: s.DatasetPath(competition, m.key)}
	logger := log.With().Str("competition", competition).Str("dataset", st.path).Logger()

	if !fileExists(st.path) {
		logger.Info().Msg("Dataset missing, full fetch required")
		st.needsFull = true
		return st
	}

	existing, err := store.ReadDataset(st.path)
	if err != nil {
		logger.Warn().Err(err).Msg("Dataset unreadable, full fetch required")
		st.needsFull = true
		return st
	}
	st.existing = existing

	since, err := s.cfg.Ledger.LastSync(st.path)
	if err != nil {
		logger.Warn().Err(err).Msg("Sync time unknown, full fetch required")
		st.needsFull = true
		return st
	}

	st.sections = detector.SectionsToUpdate(existing, since, now, s.cfg.Location)
	logger.Info().
		Time("since", since).
		Ints("sections", st.sections).
		Msg("Sections to update")
	return st
}

func (s *Syncer) syncGroup(ctx context.Context, orch *fetcher.Orchestrator, competition string, g fetchGroup, opts Options, now time.Time) ([]DatasetResult, error) {
	states := make([]memberState, 0, len(g.members))
	anyFull := false
	for _, m := range g.members {
		st := s.inspect(competition, m, now)
		anyFull = anyFull || st.needsFull
		states = append(states, st)
	}

	// replace discards existing rows; otherwise fetched sections are merged in.
	var (
		sections []int
		replace  bool
	)
	switch {
	case opts.Sections != nil:
		sections = opts.Sections
	case opts.Force || anyFull:
		replace = true
	default:
		sections = unionSections(states)
		if len(sections) == 0 {
			log.Info().
				Str("competition", competition).
				Str("fetch_path", g.fetchPath).
				Msg("No sections to update, skipping")
			results := make([]DatasetResult, 0, len(states))
			for _, st := range states {
				results = append(results, DatasetResult{Key: st.key, Path: st.path, Skipped: true, Reason: "no sections to update"})
			}
			return results, nil
		}
	}

	fetched, err := orch.Fetch(ctx, fetcher.Request{
		Competition: competition,
		FetchPath:   g.fetchPath,
		Sections:    sections,
		TeamCount:   g.maxTeamCount(),
	})
	if err != nil {
		return nil, err
	}
	if sections == nil {
		sections = fetcher.SectionRange(g.maxTeamCount())
	}

	results := make([]DatasetResult, 0, len(states))
	for _, st := range states {
		res, err := s.persist(ctx, st, fetched, sections, replace)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// route selects a member's rows from a fetch. Split datasets are filtered by
// group label when the feed carries labels, lose the group column and are
// renumbered from scratch.
func route(m member, fetched models.Dataset) models.Dataset {
	if !m.split {
		return fetched
	}
	rows := fetched
	if m.groupDisplay != "" && fetched.HasGroups() {
		rows = rows.FilterGroup(m.groupDisplay)
	}
	return rows.WithoutGroup().Renumber()
}

func (s *Syncer) persist(ctx context.Context, st memberState, fetched models.Dataset, sections []int, replace bool) (DatasetResult, error) {
	res := DatasetResult{Key: st.key, Path: st.path, Sections: sections}
	rows := route(st.member, fetched)

	if len(rows) == 0 && len(fetched) > 0 {
		log.Warn().
			Str("dataset", st.path).
			Str("group", st.groupDisplay).
			Int("fetched", len(fetched)).
			Msg("No fetched rows belong to this dataset, leaving it untouched")
		res.Skipped = true
		res.Reason = "no rows for group"
		return res, nil
	}

	data := rows
	if !replace && st.existing != nil {
		data = models.Merge(st.existing, rows, sections)
	}

	result, err := s.cfg.Writer.UpdateIfChanged(ctx, data, st.path)
	if err != nil {
		return res, fmt.Errorf("failed to store %s: %w", st.path, err)
	}
	res.Result = result
	return res, nil
}

func unionSections(states []memberState) []int {
	seen := make(map[int]struct{})
	for _, st := range states {
		for _, sec := range st.sections {
			seen[sec] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Ints(out)
	return out
}
