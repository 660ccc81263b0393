package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"jpoints/ingestion/internal/ledger"
	"jpoints/ingestion/internal/metrics"
	"jpoints/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// WriteResult is the outcome of a diff-gated write.
type WriteResult string

const (
	ResultCreated   WriteResult = "created"
	ResultUpdated   WriteResult = "updated"
	ResultUnchanged WriteResult = "unchanged"
)

// Changed reports whether the file was (re)written.
func (r WriteResult) Changed() bool {
	return r == ResultCreated || r == ResultUpdated
}

// WriteEvent describes a dataset rewrite, handed to every Sink.
type WriteEvent struct {
	RunID     string
	Path      string
	Result    WriteResult
	Rows      int
	Sections  []int
	WrittenAt time.Time
}

// Sink receives datasets after they were rewritten. Sink failures are logged
// and never undo the file write.
type Sink interface {
	Name() string
	DatasetWritten(ctx context.Context, event WriteEvent, ds models.Dataset) error
}

type runIDKey struct{}

// WithRunID tags ctx with the identifier of the current sync run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the sync run identifier stored in ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Writer persists datasets only when their content changed, and records each
// rewrite in the ledger.
type Writer struct {
	ledger *ledger.Ledger
	sinks  []Sink
	debug  bool
	now    func() time.Time
}

// NewWriter creates a diff-gated writer
func NewWriter(l *ledger.Ledger, sinks ...Sink) *Writer {
	return &Writer{ledger: l, sinks: sinks, now: time.Now}
}

// SetDebug enables logging of every differing cell
func (w *Writer) SetDebug(debug bool) {
	w.debug = debug
}

// AddSink registers another post-write sink
func (w *Writer) AddSink(s Sink) {
	w.sinks = append(w.sinks, s)
}

// UpdateIfChanged writes ds to path unless the stored file already holds the
// same matches. A missing file is always written.
func (w *Writer) UpdateIfChanged(ctx context.Context, ds models.Dataset, path string) (WriteResult, error) {
	result := ResultUpdated

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		result = ResultCreated
	} else {
		old, err := ReadDataset(path)
		if err != nil {
			return "", err
		}

		limit := 1
		if w.debug {
			limit = 0
		}
		changed, diffs := Differ(old, ds, limit)
		if !changed {
			log.Info().Str("path", path).Msg("No changes found")
			metrics.RecordDatasetWrite(string(ResultUnchanged))
			return ResultUnchanged, nil
		}
		for _, d := range diffs {
			log.Debug().
				Str("path", path).
				Int("row", d.Row).
				Str("column", d.Column).
				Str("old", d.Old).
				Str("new", d.New).
				Msg("Dataset field changed")
		}
	}

	if err := WriteDataset(path, ds); err != nil {
		return "", fmt.Errorf("failed to write dataset %s: %w", path, err)
	}
	if err := w.ledger.RecordSync(path); err != nil {
		return "", err
	}

	metrics.RecordDatasetWrite(string(result))
	log.Info().
		Str("path", path).
		Str("result", string(result)).
		Int("rows", len(ds)).
		Msg("Dataset written")

	event := WriteEvent{
		RunID:     RunID(ctx),
		Path:      path,
		Result:    result,
		Rows:      len(ds),
		Sections:  ds.Sections(),
		WrittenAt: w.now(),
	}
	for _, s := range w.sinks {
		if err := s.DatasetWritten(ctx, event, ds); err != nil {
			metrics.RecordSinkError(s.Name())
			log.Warn().Err(err).Str("sink", s.Name()).Str("path", path).Msg("Failed to notify sink")
		}
	}

	return result, nil
}
