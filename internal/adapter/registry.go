// Package adapter picks the source adapter a competition is published through.
package adapter

import (
	"fmt"
	"net/http"
	"time"

	"jpoints/ingestion/internal/adapter/jfa"
	"jpoints/ingestion/internal/adapter/jleague"
	"jpoints/ingestion/internal/client"
	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/seasonmap"
)

// Source names accepted in the season map.
const (
	SourceJLeague = "jleague"
	SourceJFA     = "jfa"
)

// Defaults apply to every adapter the registry builds.
type Defaults struct {
	JLeagueURLFormat string
	HTTPTimeout      time.Duration
	UserAgent        string
	// FeedRetries is the extra attempts JSON feeds get on transient failures.
	FeedRetries    int
	FeedRetryDelay time.Duration
}

// Registry builds section sources from competition entries. Every source
// shares one pooled HTTP client.
type Registry struct {
	defaults   Defaults
	httpClient *http.Client
}

// NewRegistry creates a registry.
func NewRegistry(defaults Defaults) *Registry {
	return &Registry{defaults: defaults, httpClient: client.NewHTTPClient(defaults.HTTPTimeout)}
}

// Source returns a fresh section source for one competition. Feed caches live
// as long as the returned source, so callers build one per sync pass.
func (r *Registry) Source(competition string, entry *seasonmap.CompetitionEntry) (fetcher.SectionSource, error) {
	source := entry.Source
	if source == "" {
		source = SourceJLeague
	}

	cfg := client.Config{
		Source:     source,
		UserAgent:  r.defaults.UserAgent,
		HTTPClient: r.httpClient,
	}

	switch source {
	case SourceJLeague:
		urlFormat := entry.URLFormat
		if urlFormat == "" {
			urlFormat = r.defaults.JLeagueURLFormat
		}
		// Pages get a single attempt; a failed section fails the run.
		return jleague.NewSource(client.NewClient(cfg), urlFormat), nil

	case SourceJFA:
		if entry.URLFormat == "" {
			return nil, fmt.Errorf("competition %s: jfa source needs url_format", competition)
		}
		cfg.MaxRetries = r.defaults.FeedRetries
		cfg.RetryDelay = r.defaults.FeedRetryDelay
		cfg.ConstantBackoff = true
		return jfa.NewSource(client.NewClient(cfg), jfa.Config{
			URLFormat:        entry.URLFormat,
			Groups:           entry.FeedGroups,
			MatchesInSection: entry.MatchesInSection,
		}), nil

	default:
		return nil, fmt.Errorf("competition %s: unknown source %q", competition, source)
	}
}
