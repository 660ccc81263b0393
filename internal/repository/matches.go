package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/models"
	"jpoints/ingestion/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const schema = `
	CREATE TABLE IF NOT EXISTS matches (
		dataset                TEXT NOT NULL,
		match_date             TEXT NOT NULL,
		section_no             INTEGER NOT NULL,
		match_index_in_section INTEGER NOT NULL,
		start_time             TEXT NOT NULL,
		stadium                TEXT NOT NULL,
		home_team              TEXT NOT NULL,
		home_goal              INTEGER,
		away_goal              INTEGER,
		away_team              TEXT NOT NULL,
		status                 TEXT NOT NULL,
		match_group            TEXT NOT NULL DEFAULT '',
		home_pk_score          INTEGER,
		away_pk_score          INTEGER,
		archived_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS matches_dataset_section_idx ON matches (dataset, section_no);

	CREATE TABLE IF NOT EXISTS dataset_writes (
		id         BIGSERIAL PRIMARY KEY,
		dataset    TEXT NOT NULL,
		run_id     TEXT NOT NULL,
		result     TEXT NOT NULL,
		rows       INTEGER NOT NULL,
		sections   INTEGER[] NOT NULL,
		written_at TIMESTAMPTZ NOT NULL
	);
`

var matchColumns = []string{
	"dataset", "match_date", "section_no", "match_index_in_section", "start_time", "stadium",
	"home_team", "home_goal", "away_goal", "away_team", "status", "match_group",
	"home_pk_score", "away_pk_score",
}

// DatasetName is the archive key of a dataset file: its base name without extension.
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MatchRepository archives dataset snapshots
type MatchRepository struct {
	db *Database
}

// EnsureSchema creates the archive tables when missing
func (r *MatchRepository) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := r.db.Pool.Exec(ctx, schema)
	if err != nil {
		metrics.RecordDBQuery("migrate", "matches", "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	metrics.RecordDBQuery("migrate", "matches", "success", time.Since(start).Seconds())
	return nil
}

// ReplaceDataset swaps the archived rows of one dataset for ds and logs the write,
// in a single transaction.
func (r *MatchRepository) ReplaceDataset(ctx context.Context, event store.WriteEvent, ds models.Dataset) error {
	start := time.Now()
	dataset := DatasetName(event.Path)

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE dataset = $1`, dataset); err != nil {
			return fmt.Errorf("failed to clear dataset: %w", err)
		}

		rows := make([][]interface{}, 0, len(ds))
		for i := range ds {
			m := &ds[i]
			rows = append(rows, []interface{}{
				dataset, m.MatchDate, m.SectionNo, m.MatchIndexInSection, m.StartTime, m.Stadium,
				m.HomeTeam, nullable(m.HomeGoal), nullable(m.AwayGoal), m.AwayTeam, m.Status, m.Group,
				nullable(m.HomePKScore), nullable(m.AwayPKScore),
			})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"matches"}, matchColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy matches: %w", err)
		}

		sections := make([]int32, 0, len(event.Sections))
		for _, s := range event.Sections {
			sections = append(sections, int32(s))
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO dataset_writes (dataset, run_id, result, rows, sections, written_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, dataset, event.RunID, string(event.Result), event.Rows, sections, event.WrittenAt)
		if err != nil {
			return fmt.Errorf("failed to log dataset write: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordDBQuery("replace", "matches", "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to archive dataset %s: %w", dataset, err)
	}

	metrics.RecordDBQuery("replace", "matches", "success", time.Since(start).Seconds())
	log.Debug().
		Str("dataset", dataset).
		Int("rows", len(ds)).
		Msg("Dataset archived")

	return nil
}

// GetByDataset returns the archived rows of a dataset in section order
func (r *MatchRepository) GetByDataset(ctx context.Context, dataset string) (models.Dataset, error) {
	query := `
		SELECT match_date, section_no, match_index_in_section, start_time, stadium,
			home_team, home_goal, away_goal, away_team, status, match_group,
			home_pk_score, away_pk_score
		FROM matches
		WHERE dataset = $1
		ORDER BY section_no, match_index_in_section
	`

	rows, err := r.db.Pool.Query(ctx, query, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset %s: %w", dataset, err)
	}
	defer rows.Close()

	out := models.Dataset{}
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(
			&m.MatchDate, &m.SectionNo, &m.MatchIndexInSection, &m.StartTime, &m.Stadium,
			&m.HomeTeam, &m.HomeGoal, &m.AwayGoal, &m.AwayTeam, &m.Status, &m.Group,
			&m.HomePKScore, &m.AwayPKScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return out, nil
}

// CountWrites returns how many rewrites of a dataset have been archived
func (r *MatchRepository) CountWrites(ctx context.Context, dataset string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM dataset_writes WHERE dataset = $1`, dataset).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dataset writes: %w", err)
	}
	return n, nil
}

func nullable(n sql.NullInt32) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Int32
}

// ArchiveSink mirrors every rewritten dataset into Postgres
type ArchiveSink struct {
	matches *MatchRepository
}

// NewArchiveSink creates a sink backed by the match repository
func NewArchiveSink(db *Database) *ArchiveSink {
	return &ArchiveSink{matches: db.Matches}
}

// Name identifies the sink in logs and metrics
func (s *ArchiveSink) Name() string {
	return "postgres_archive"
}

// DatasetWritten archives the new dataset contents
func (s *ArchiveSink) DatasetWritten(ctx context.Context, event store.WriteEvent, ds models.Dataset) error {
	return s.matches.ReplaceDataset(ctx, event, ds)
}
