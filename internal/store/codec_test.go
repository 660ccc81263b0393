package store

import (
	"bytes"
	"strings"
	"testing"

	"jpoints/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataset_DropsIndexColumn(t *testing.T) {
	content := strings.Join([]string{
		",match_date,section_no,match_index_in_section,start_time,stadium,home_team,home_goal,away_goal,away_team,status",
		"0,2026-02-07,1,1,14:00,味スタ,FC東京,2.0,1.0,浦和,試合終了",
		"1,2026/02/08,1,2,13:00,日産ス,横浜FM,,,鹿島,ＶＳ",
	}, "\n")

	ds, err := DecodeDataset(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, ds, 2)

	assert.Equal(t, "2026/02/07", ds[0].MatchDate)
	assert.Equal(t, int32(2), ds[0].HomeGoal.Int32)
	assert.False(t, ds[1].HomeGoal.Valid)

	var buf bytes.Buffer
	require.NoError(t, EncodeDataset(&buf, ds))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, strings.Join(models.BaseColumns, ","), lines[0], "Index column should not be written back")
	assert.Equal(t, "2026/02/07,1,1,14:00,味スタ,FC東京,2,1,浦和,試合終了", lines[1])
	assert.Equal(t, "2026/02/08,1,2,13:00,日産ス,横浜FM,,,鹿島,ＶＳ", lines[2])
}

func TestDecodeDataset_Errors(t *testing.T) {
	_, err := DecodeDataset(strings.NewReader("match_date,home_team\n2026/02/07,FC東京\n"))
	assert.Error(t, err, "section_no column is mandatory")

	_, err = DecodeDataset(strings.NewReader("section_no,match_index_in_section\nx,1\n"))
	assert.Error(t, err, "Non-numeric section should fail the load")

	ds, err := DecodeDataset(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestEncodeDataset_OptionalColumns(t *testing.T) {
	ds := models.Dataset{
		{MatchDate: "2026/05/01", SectionNo: 1, MatchIndexInSection: 1, HomeTeam: "A", AwayTeam: "B",
			Group: "EAST", HomePKScore: goal(4), AwayPKScore: goal(2)},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeDataset(&buf, ds))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.True(t, strings.HasSuffix(header, ",group,home_pk_score,away_pk_score"))
}

func TestDiffer(t *testing.T) {
	a := sampleDataset()
	b := sampleDataset()
	b[0], b[1] = b[1], b[0]

	changed, diffs := Differ(a, b, 0)
	assert.False(t, changed, "Row order must not matter")
	assert.Empty(t, diffs)

	b[0].Stadium = "新スタジアム"
	changed, diffs = Differ(a, b, 0)
	assert.True(t, changed)
	require.Len(t, diffs, 1)
	assert.Equal(t, models.ColStadium, diffs[0].Column)

	changed, _ = Differ(a, b[:2], 0)
	assert.True(t, changed, "Different row counts differ")
}
