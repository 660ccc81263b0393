package fetcher

import (
	"context"
	"errors"
	"testing"

	"jpoints/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls []int
	fail  map[int]error
	rows  func(section int) []models.RawRow
}

func (f *fakeSource) FetchSection(_ context.Context, _ string, section int) ([]models.RawRow, error) {
	f.calls = append(f.calls, section)
	if err := f.fail[section]; err != nil {
		return nil, err
	}
	if f.rows == nil {
		return nil, nil
	}
	return f.rows(section), nil
}

func twoMatches(section int) []models.RawRow {
	return []models.RawRow{
		{"match_date": "2026/03/01", "section_no": section, "match_index_in_section": 2, "home_team": "B", "away_team": "A"},
		{"match_date": "2026/03/01", "section_no": section, "match_index_in_section": 1, "home_team": "C", "away_team": "D"},
	}
}

func TestSectionRange(t *testing.T) {
	for n := 2; n <= 40; n++ {
		got := SectionRange(n)
		want := n * 2
		if n%2 == 0 {
			want = (n - 1) * 2
		}
		require.Len(t, got, want, "team count %d", n)
		assert.Equal(t, 1, got[0])
		assert.Equal(t, want, got[len(got)-1])
	}
	assert.Len(t, SectionRange(18), 34)
	assert.Len(t, SectionRange(10), 18)
	assert.Len(t, SectionRange(5), 10)
}

func TestParseSections(t *testing.T) {
	got, err := ParseSections("7-10, 1-3,5,2")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 5, 7, 8, 9, 10}, got)

	for _, bad := range []string{"", "a", "3-1", "0", "1-x", ","} {
		_, err := ParseSections(bad)
		assert.Error(t, err, "%q should be rejected", bad)
	}
}

func TestOrchestrator_FullRange(t *testing.T) {
	src := &fakeSource{rows: twoMatches}
	ds, err := NewOrchestrator(src).Fetch(context.Background(), Request{Competition: "J1", FetchPath: "j1", TeamCount: 18})
	require.NoError(t, err)

	assert.Equal(t, SectionRange(18), src.calls, "Nil sections means the full range")
	require.Len(t, ds, 68)
	assert.Equal(t, 1, ds[0].MatchIndexInSection, "Rows are ordered by section and index")
	assert.Equal(t, "C", ds[0].HomeTeam)
	assert.Equal(t, 34, ds[len(ds)-1].SectionNo)
}

func TestOrchestrator_ExplicitSections(t *testing.T) {
	src := &fakeSource{rows: twoMatches}
	ds, err := NewOrchestrator(src).Fetch(context.Background(), Request{FetchPath: "j1", Sections: []int{3, 1}, TeamCount: 18})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 1}, src.calls)
	assert.Equal(t, []int{1, 3}, ds.Sections())
}

func TestOrchestrator_AbortsOnFailure(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{rows: twoMatches, fail: map[int]error{2: boom}}

	ds, err := NewOrchestrator(src).Fetch(context.Background(), Request{FetchPath: "j1", Sections: []int{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Nil(t, ds, "A failed fetch must not return partial data")
	assert.Equal(t, []int{1, 2}, src.calls, "Fetching stops at the first failure")
}

func TestOrchestrator_EmptySections(t *testing.T) {
	src := &fakeSource{}
	ds, err := NewOrchestrator(src).Fetch(context.Background(), Request{FetchPath: "j1", Sections: []int{1}})
	require.NoError(t, err)
	assert.Empty(t, ds, "Sections without data yet are not an error")
}

func TestOrchestrator_NoTeamCount(t *testing.T) {
	_, err := NewOrchestrator(&fakeSource{}).Fetch(context.Background(), Request{FetchPath: "j1"})
	assert.Error(t, err)
}
