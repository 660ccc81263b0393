// Package jfa reads the season schedule feeds (schedule.json) published by the JFA.
package jfa

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/client"
	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/models"
)

const cancelledMarker = "【中止】"

var sectionPattern = regexp.MustCompile(`(\d+)`)

// Fetcher is the HTTP dependency of the adapter.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config configures a feed source.
type Config struct {
	// URLFormat may contain {group} and {category}.
	URLFormat string
	// Groups are substituted for {group}, one feed each. Empty means one feed.
	Groups []string
	// MatchesInSection derives the section from feed order when the
	// match type name carries no number.
	MatchesInSection int
}

// Source implements fetcher.SectionSource over whole-season JSON feeds.
// Each feed is downloaded once per Source and then served section by section.
// Retrying is up to the Fetcher; a feed still failing transiently is skipped.
type Source struct {
	client Fetcher
	cfg    Config
	cache  map[string][]models.RawRow
}

// NewSource creates a feed source.
func NewSource(c Fetcher, cfg Config) *Source {
	if len(cfg.Groups) == 0 {
		cfg.Groups = []string{""}
	}
	return &Source{client: c, cfg: cfg, cache: make(map[string][]models.RawRow)}
}

type scheduleDocument struct {
	MatchScheduleList struct {
		MatchSchedule []scheduleMatch `json:"matchSchedule"`
	} `json:"matchScheduleList"`
}

type scheduleMatch struct {
	MatchTypeName string `json:"matchTypeName"`
	MatchDateJpn  string `json:"matchDateJpn"`
	MatchTimeJpn  string `json:"matchTimeJpn"`
	Venue         string `json:"venue"`
	VenueFullName string `json:"venueFullName"`
	HomeTeamName  string `json:"homeTeamName"`
	AwayTeamName  string `json:"awayTeamName"`
	MatchStatus   string `json:"matchStatus"`
	Score         struct {
		HomeScore   interface{} `json:"homeScore"`
		AwayScore   interface{} `json:"awayScore"`
		HomePKScore interface{} `json:"homePKScore"`
		AwayPKScore interface{} `json:"awayPKScore"`
		ExMatch     bool        `json:"exMatch"`
	} `json:"score"`
}

// FeedURL returns the feed address for one group.
func (s *Source) FeedURL(fetchPath, group string) string {
	return strings.NewReplacer("{group}", group, "{category}", fetchPath).Replace(s.cfg.URLFormat)
}

// FetchSection returns the rows of one section across all configured groups.
func (s *Source) FetchSection(ctx context.Context, fetchPath string, section int) ([]models.RawRow, error) {
	season, err := s.season(ctx, fetchPath)
	if err != nil {
		return nil, err
	}

	var rows []models.RawRow
	for _, row := range season {
		if row[models.ColSectionNo] == section {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Source) season(ctx context.Context, fetchPath string) ([]models.RawRow, error) {
	if rows, ok := s.cache[fetchPath]; ok {
		return rows, nil
	}

	var all []models.RawRow
	for _, group := range s.cfg.Groups {
		url := s.FeedURL(fetchPath, group)
		body, err := s.client.Get(ctx, url)
		if err != nil {
			if !client.IsTransient(err) {
				return nil, err
			}
			log.Warn().
				Err(err).
				Str("url", url).
				Str("group", group).
				Msg("Feed unavailable, continuing without it")
			continue
		}

		rows, err := ParseSchedule(body, s.cfg.MatchesInSection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}
		for _, row := range rows {
			if group != "" {
				row[models.ColGroup] = group
			}
		}
		all = append(all, rows...)
	}

	s.cache[fetchPath] = all
	return all, nil
}

// ParseSchedule converts one schedule.json document into raw rows. The match
// index counts per section in feed order.
func ParseSchedule(body []byte, matchesInSection int) ([]models.RawRow, error) {
	var doc scheduleDocument
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}

	matches := doc.MatchScheduleList.MatchSchedule
	rows := make([]models.RawRow, 0, len(matches))
	indexes := make(map[int]int)
	for i, m := range matches {
		section, err := sectionOf(m.MatchTypeName, i, matchesInSection)
		if err != nil {
			return nil, err
		}
		indexes[section]++

		status := m.MatchStatus
		if strings.Contains(m.VenueFullName, cancelledMarker) {
			status = models.StatusCancelled
		}

		rows = append(rows, models.RawRow{
			models.ColMatchDate:           orUndecided(m.MatchDateJpn),
			models.ColSectionNo:           section,
			models.ColMatchIndexInSection: indexes[section],
			models.ColStartTime:           orUndecided(m.MatchTimeJpn),
			models.ColStadium:             m.Venue,
			models.ColHomeTeam:            m.HomeTeamName,
			models.ColAwayTeam:            m.AwayTeamName,
			models.ColHomeGoal:            m.Score.HomeScore,
			models.ColAwayGoal:            m.Score.AwayScore,
			models.ColHomePKScore:         m.Score.HomePKScore,
			models.ColAwayPKScore:         m.Score.AwayPKScore,
			models.ColStatus:              status,
		})
	}
	return rows, nil
}

func sectionOf(matchTypeName string, position, matchesInSection int) (int, error) {
	if m := sectionPattern.FindStringSubmatch(matchTypeName); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, nil
		}
	}
	if matchesInSection > 0 {
		return position/matchesInSection + 1, nil
	}
	return 0, fmt.Errorf("%w: match type %q has no section number", fetcher.ErrFormatDrift, matchTypeName)
}

func orUndecided(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.Undecided
	}
	return s
}
