package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"jpoints/ingestion/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seasonMap = `
jleague:
  competitions:
    J1:
      season_start_month: 1
      seasons:
        "2026": [20, 0, 3]
    J2:
      seasons:
        "26-27": [20, 2, 3]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "season_map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seasonMap), 0o644))

	return &config.Config{
		SeasonMapFile:     path,
		DatasetPathFormat: filepath.Join(dir, "{season}_allmatch_result-{competition}.csv"),
		LedgerFile:        filepath.Join(dir, "csv_timestamp.csv"),
		Timezone:          "Asia/Tokyo",
		CronTimezone:      "UTC",
		GroupKey:          "jleague",
	}
}

func TestNew_WiresSyncer(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"J1", "J2"}, a.Competitions(nil), "All competitions of the group by default")
	assert.Equal(t, []string{"J2"}, a.Competitions([]string{"J2"}))

	cfg.Competitions = []string{"J1"}
	assert.Equal(t, []string{"J1"}, a.Competitions(nil))

	path := a.Syncer.DatasetPath("J1", "2026")
	assert.Equal(t, "2026_allmatch_result-J1.csv", filepath.Base(path))
}

func TestNew_MissingSeasonMap(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeasonMapFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestNew_SkipSinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableArchive = true
	cfg.DatabasePassword = "unused"

	a, err := New(context.Background(), cfg, Options{SkipSinks: true})
	require.NoError(t, err, "Sinks are not dialled when skipped")
	assert.Nil(t, a.Database)
	a.Close()
}
