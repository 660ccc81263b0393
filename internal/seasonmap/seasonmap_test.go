package seasonmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeasonMap = `
jleague:
  display_name: Jリーグ
  season_start_month: 7
  competitions:
    J1:
      league_display: J1リーグ
      season_start_month: 2
      seasons:
        "2025": [20, 0, 3, [鹿島, 柏, 京都], {point_system: standard}]
        "2026East": [10, 0, 0, [鹿島, 浦和], {group_display: EAST, season_start_month: 1}]
        "2026West": [10, 0, 0, [神戸, 広島], {group_display: WEST, season_start_month: 1}]
    J2:
      seasons:
        "2026EastA": [10, 0, 0, [], {group_display: EAST-A, url_category: j2j3}]
        "2026EastB": [10, 0, 0, [], {group_display: EAST-B, url_category: j2j3}]
        "2026WestA": [10, 0, 0, [], {group_display: WEST-A, url_category: j2j3}]
        "2026WestB": [10, 0, 0, [], {group_display: WEST-B, url_category: j2j3}]
        "26-27": [20, 2, 3, [], {future_flag: true}]
    J3:
      seasons:
        "2025": [20, 2, 2]
    JFL:
      seasons:
        "2026East": [8, 0, 0, [], {group_display: EAST}]
`

func testResolver(t *testing.T, season string) *Resolver {
	t.Helper()
	doc, err := Parse([]byte(testSeasonMap))
	require.NoError(t, err, "Test season map should parse")
	return NewResolver(doc, "jleague", season)
}

func TestParse_SeasonEntry(t *testing.T) {
	r := testResolver(t, "")

	entry, err := r.Season("J1", "2025")
	require.NoError(t, err)
	assert.Equal(t, 20, entry.TeamCount)
	assert.Equal(t, 0, entry.Promotion)
	assert.Equal(t, 3, entry.Relegation)
	assert.Equal(t, []string{"鹿島", "柏", "京都"}, entry.Teams)
	assert.Equal(t, "standard", entry.StringOption(OptPointSystem))

	entry, err = r.Season("J2", "26-27")
	require.NoError(t, err)
	assert.Equal(t, []string{"future_flag"}, entry.UnknownOptions(), "Unknown options are kept, not rejected")

	entry, err = r.Season("J3", "2025")
	require.NoError(t, err, "Options and team list are optional")
	assert.Empty(t, entry.Teams)
}

func TestParse_JSONDocument(t *testing.T) {
	doc, err := Parse([]byte(`{"jleague": {"competitions": {"J1": {"seasons": {"2024": [20, 0, 3, ["A", "B"]]}}}}}`))
	require.NoError(t, err, "JSON season maps should load")

	entry, err := NewResolver(doc, "jleague", "").Season("J1", "2024")
	require.NoError(t, err)
	assert.Equal(t, 20, entry.TeamCount)
}

func TestParse_InvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a list", `g: {competitions: {J1: {seasons: {"2025": {teams: 20}}}}}`},
		{"too short", `g: {competitions: {J1: {seasons: {"2025": [20, 0]}}}}`},
		{"string team count", `g: {competitions: {J1: {seasons: {"2025": [twenty, 0, 0]}}}}`},
		{"team count too small", `g: {competitions: {J1: {seasons: {"2025": [1, 0, 0]}}}}`},
		{"negative relegation", `g: {competitions: {J1: {seasons: {"2025": [20, 0, -1]}}}}`},
		{"bad start month", `g: {season_start_month: 13, competitions: {}}`},
		{"unknown source", `g: {competitions: {J1: {source: rss, seasons: {}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "season_map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSeasonMap), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc, "jleague")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolver_SubSeasons(t *testing.T) {
	r := testResolver(t, "")

	subs, err := r.SubSeasons("J1", "2025")
	require.NoError(t, err)
	assert.Empty(t, subs, "Bare key only means a single season")
	assert.NotNil(t, subs)

	subs, err = r.SubSeasons("J1", "2026")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "2026East", subs[0].Key)
	assert.Equal(t, "East", subs[0].Group)
	assert.Equal(t, "EAST", subs[0].GroupDisplay)
	assert.Equal(t, 10, subs[0].TeamCount)
	assert.Equal(t, []string{"鹿島", "浦和"}, subs[0].Teams)
	assert.Equal(t, "", subs[0].URLCategory)
	assert.Equal(t, "2026West", subs[1].Key)

	subs, err = r.SubSeasons("J2", "2026")
	require.NoError(t, err)
	require.Len(t, subs, 4)
	for _, s := range subs {
		assert.Equal(t, "j2j3", s.URLCategory, "J2 sub-seasons share the j2j3 feed")
	}
	assert.Equal(t, []string{"EAST-A", "EAST-B", "WEST-A", "WEST-B"},
		[]string{subs[0].GroupDisplay, subs[1].GroupDisplay, subs[2].GroupDisplay, subs[3].GroupDisplay})

	subs, err = r.SubSeasons("JFL", "2026")
	require.NoError(t, err)
	require.Len(t, subs, 1, "A lone prefixed key is still a split season")
	assert.Equal(t, "2026East", subs[0].Key)
	assert.Equal(t, "EAST", subs[0].GroupDisplay)

	_, err = r.SubSeasons("J3", "2026")
	assert.True(t, errors.Is(err, ErrNoSeasonEntry), "No bare or prefixed key means skip")

	_, err = r.SubSeasons("WE", "2026")
	assert.True(t, errors.Is(err, ErrUnknownCompetition))
}

func TestSeasonLabel(t *testing.T) {
	tests := []struct {
		date       time.Time
		startMonth int
		want       string
	}{
		{time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), 1, "2026"},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), 1, "2026"},
		{time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 7, "26-27"},
		{time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 7, "26-27"},
		{time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), 7, "25-26"},
		{time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), 8, "26-27"},
		{time.Date(2099, 9, 1, 0, 0, 0, 0, time.UTC), 8, "99-00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SeasonLabel(tt.date, tt.startMonth))
		})
	}
}

func TestResolver_StartMonthCascade(t *testing.T) {
	r := testResolver(t, "")

	assert.Equal(t, 1, r.StartMonth("J1", "2026"), "Season option wins")
	assert.Equal(t, 2, r.StartMonth("J1", "2025"), "Competition default applies without a season option")
	assert.Equal(t, 7, r.StartMonth("J2", "26-27"), "Group default applies without competition default")

	doc, err := Parse([]byte(`other: {competitions: {X: {seasons: {}}}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultStartMonth, NewResolver(doc, "other", "").StartMonth("X", "2026"))
}

func TestResolver_CurrentSeason(t *testing.T) {
	r := testResolver(t, "")
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// J1 defaults to February starts, but "26-27" has no entry; the 2026 entries start in January.
	season, err := r.CurrentSeason("J1", now)
	require.NoError(t, err)
	assert.Equal(t, "2026", season)

	season, err = r.CurrentSeason("J3", now)
	require.NoError(t, err)
	assert.Equal(t, "25-26", season, "Without any matching entry the default label is returned")

	season, err = r.CurrentSeason("J2", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "26-27", season)

	pinned := testResolver(t, "2026")
	season, err = pinned.CurrentSeason("J1", now)
	require.NoError(t, err)
	assert.Equal(t, "2026", season, "Pinned season wins")
}
