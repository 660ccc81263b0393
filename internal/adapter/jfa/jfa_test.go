package jfa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpoints/ingestion/internal/client"
	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/models"
)

const scheduleJSON = `{
  "matchScheduleList": {
    "matchSchedule": [
      {"matchTypeName": "第1節", "matchDateJpn": "2022/04/02", "matchTimeJpn": "11:00",
       "venue": "味の素フィールド西が丘", "venueFullName": "東京／味の素フィールド西が丘",
       "homeTeamName": "FC東京U-18", "awayTeamName": "横浜FCユース",
       "score": {"homeScore": "2", "awayScore": "1", "homePKScore": "", "awayPKScore": "", "exMatch": false},
       "matchStatus": "試合終了"},
      {"matchTypeName": "第1節", "matchDateJpn": "2022/04/03", "matchTimeJpn": "13:00",
       "venue": "時之栖", "venueFullName": "【中止】静岡／時之栖",
       "homeTeamName": "清水ユース", "awayTeamName": "磐田U-18",
       "score": {"homeScore": "", "awayScore": "", "exMatch": false},
       "matchStatus": ""},
      {"matchTypeName": "第2節", "matchDateJpn": "", "matchTimeJpn": "",
       "venue": "", "venueFullName": "",
       "homeTeamName": "横浜FCユース", "awayTeamName": "清水ユース",
       "score": {"homeScore": 1, "awayScore": 1, "homePKScore": 5, "awayPKScore": 4, "exMatch": true},
       "matchStatus": "試合終了"}
    ]
  }
}`

func TestParseSchedule(t *testing.T) {
	rows, err := ParseSchedule([]byte(scheduleJSON), 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first, err := rows[0].ToMatch()
	require.NoError(t, err)
	assert.Equal(t, "2022/04/02", first.MatchDate)
	assert.Equal(t, 1, first.SectionNo)
	assert.Equal(t, 1, first.MatchIndexInSection)
	assert.Equal(t, "味の素フィールド西が丘", first.Stadium)
	assert.Equal(t, int32(2), first.HomeGoal.Int32)
	assert.False(t, first.HomePKScore.Valid)

	cancelled, err := rows[1].ToMatch()
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status, "Cancelled marker lives in the venue name")
	assert.Equal(t, 2, cancelled.MatchIndexInSection)

	pk, err := rows[2].ToMatch()
	require.NoError(t, err)
	assert.Equal(t, 2, pk.SectionNo)
	assert.Equal(t, 1, pk.MatchIndexInSection, "Index restarts per section")
	assert.Equal(t, models.Undecided, pk.MatchDate)
	assert.Equal(t, models.Undecided, pk.StartTime)
	assert.Equal(t, int32(5), pk.HomePKScore.Int32)
	assert.Equal(t, int32(4), pk.AwayPKScore.Int32)
}

func TestParseSchedule_MatchesInSection(t *testing.T) {
	body := `{"matchScheduleList": {"matchSchedule": [
		{"matchTypeName": "グループステージ"}, {"matchTypeName": "グループステージ"},
		{"matchTypeName": "グループステージ"}, {"matchTypeName": "グループステージ"}]}}`

	rows, err := ParseSchedule([]byte(body), 2)
	require.NoError(t, err)
	sections := []interface{}{rows[0][models.ColSectionNo], rows[1][models.ColSectionNo], rows[2][models.ColSectionNo], rows[3][models.ColSectionNo]}
	assert.Equal(t, []interface{}{1, 1, 2, 2}, sections)

	_, err = ParseSchedule([]byte(body), 0)
	assert.True(t, errors.Is(err, fetcher.ErrFormatDrift), "No section number and no matches-per-section is drift")
}

func TestSource_FetchSection_GroupsAndCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, scheduleJSON)
	}))
	defer server.Close()

	src := NewSource(client.NewClient(client.Config{Source: "jfa"}), Config{
		URLFormat: server.URL + "/{category}/group{group}/schedule.json",
		Groups:    []string{"A", "B"},
	})

	rows, err := src.FetchSection(context.Background(), "wc", 1)
	require.NoError(t, err)
	require.Len(t, rows, 4, "Two matches of section 1 per group")
	assert.Equal(t, "A", rows[0][models.ColGroup])
	assert.Equal(t, "B", rows[3][models.ColGroup])

	rows, err = src.FetchSection(context.Background(), "wc", 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "Each feed is downloaded once")

	assert.Equal(t, "http://x/wc/groupC/schedule.json",
		NewSource(nil, Config{URLFormat: "http://x/{category}/group{group}/schedule.json"}).FeedURL("wc", "C"))
}

func TestSource_FetchSection_DegradesAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := client.NewClient(client.Config{Source: "jfa", MaxRetries: 2, RetryDelay: time.Millisecond, ConstantBackoff: true})
	src := NewSource(c, Config{URLFormat: server.URL + "/schedule.json"})

	rows, err := src.FetchSection(context.Background(), "prince", 1)
	require.NoError(t, err, "Transient feed failures degrade to no rows")
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSource_FetchSection_PermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := client.NewClient(client.Config{Source: "jfa", MaxRetries: 2, RetryDelay: time.Millisecond, ConstantBackoff: true})
	src := NewSource(c, Config{URLFormat: server.URL})
	_, err := src.FetchSection(context.Background(), "prince", 1)
	require.Error(t, err)
	assert.False(t, client.IsTransient(err))
}
