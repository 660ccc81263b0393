package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpoints/ingestion/internal/adapter/jfa"
	"jpoints/ingestion/internal/adapter/jleague"
	"jpoints/ingestion/internal/seasonmap"
)

func TestRegistry_Source(t *testing.T) {
	r := NewRegistry(Defaults{JLeagueURLFormat: "http://mirror/{category}/{section}/"})

	src, err := r.Source("J1", &seasonmap.CompetitionEntry{})
	require.NoError(t, err)
	page, ok := src.(*jleague.Source)
	require.True(t, ok, "J.League pages are the default source")
	assert.Equal(t, "http://mirror/j1/3/", page.SectionURL("j1", 3))

	src, err = r.Source("J1", &seasonmap.CompetitionEntry{URLFormat: "http://other/{category}-{section}"})
	require.NoError(t, err)
	assert.Equal(t, "http://other/j1-3", src.(*jleague.Source).SectionURL("j1", 3), "Competition url_format wins")

	src, err = r.Source("PrinceKanto", &seasonmap.CompetitionEntry{Source: SourceJFA, URLFormat: "http://jfa/{group}.json"})
	require.NoError(t, err)
	_, ok = src.(*jfa.Source)
	assert.True(t, ok)

	_, err = r.Source("PrinceKanto", &seasonmap.CompetitionEntry{Source: SourceJFA})
	assert.Error(t, err, "Feeds have no default address")

	_, err = r.Source("X", &seasonmap.CompetitionEntry{Source: "rss"})
	assert.Error(t, err)
}

func TestRegistry_RetryPolicyPerSource(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := NewRegistry(Defaults{
		JLeagueURLFormat: server.URL + "/{category}/{section}/",
		HTTPTimeout:      time.Second,
		FeedRetries:      2,
		FeedRetryDelay:   time.Millisecond,
	})
	require.NotNil(t, r.httpClient)

	page, err := r.Source("J1", &seasonmap.CompetitionEntry{})
	require.NoError(t, err)
	_, err = page.FetchSection(context.Background(), "j1", 1)
	assert.Error(t, err, "A failing page fails the section")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "Pages are not retried")

	atomic.StoreInt32(&calls, 0)
	feed, err := r.Source("PrinceKanto", &seasonmap.CompetitionEntry{Source: SourceJFA, URLFormat: server.URL + "/{group}.json"})
	require.NoError(t, err)
	rows, err := feed.FetchSection(context.Background(), "prince", 1)
	require.NoError(t, err, "An unavailable feed degrades to no rows")
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "Feeds get FeedRetries extra attempts")
}
