// Package fetcher retrieves schedule sections through a source adapter and
// assembles them into one dataset.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/models"
)

// ErrFormatDrift means a source page carries match rows but its structural
// markers no longer parse. The adapter needs updating; the run must stop.
var ErrFormatDrift = errors.New("source format drift")

// SectionSource is implemented by the per-site adapters.
type SectionSource interface {
	// FetchSection returns the raw rows of one section published under fetchPath.
	// An empty result means the section has no data yet.
	FetchSection(ctx context.Context, fetchPath string, section int) ([]models.RawRow, error)
}

// Request describes one fetch.
type Request struct {
	Competition string
	// FetchPath is the upstream identifier, e.g. "j1" or a shared "j2j3".
	FetchPath string
	// Sections to fetch. Nil means the full range for TeamCount.
	Sections  []int
	TeamCount int
}

// Orchestrator fetches sections sequentially from one source.
type Orchestrator struct {
	source SectionSource
}

// NewOrchestrator creates an orchestrator over source.
func NewOrchestrator(source SectionSource) *Orchestrator {
	return &Orchestrator{source: source}
}

// Fetch retrieves every requested section and returns the rows ordered by
// (section_no, match_index_in_section). The first failing section aborts the
// fetch; a failed section is never replaced by an empty one.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (models.Dataset, error) {
	sections := req.Sections
	if sections == nil {
		if req.TeamCount < 2 {
			return nil, fmt.Errorf("cannot derive section range for %s: team count %d", req.Competition, req.TeamCount)
		}
		sections = SectionRange(req.TeamCount)
	}

	start := time.Now()
	log.Info().
		Str("competition", req.Competition).
		Str("fetch_path", req.FetchPath).
		Ints("sections", sections).
		Msg("Fetching sections")

	var ds models.Dataset
	for _, section := range sections {
		rows, err := o.source.FetchSection(ctx, req.FetchPath, section)
		if err != nil {
			metrics.RecordSectionFetch(req.FetchPath, "error", 0)
			return nil, fmt.Errorf("failed to fetch %s section %d: %w", req.FetchPath, section, err)
		}
		metrics.RecordSectionFetch(req.FetchPath, "success", len(rows))

		for i, row := range rows {
			m, err := row.ToMatch()
			if err != nil {
				return nil, fmt.Errorf("failed to normalize %s section %d row %d: %w", req.FetchPath, section, i, err)
			}
			ds = append(ds, *m)
		}

		log.Debug().
			Str("fetch_path", req.FetchPath).
			Int("section", section).
			Int("rows", len(rows)).
			Msg("Fetched section")
	}

	log.Info().
		Str("competition", req.Competition).
		Str("fetch_path", req.FetchPath).
		Int("sections", len(sections)).
		Int("matches", len(ds)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return ds.SortBySection(), nil
}
