package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Header of the ledger file.
var header = []string{"file", "date"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Ledger records when each dataset file was last confirmed in sync with its source.
// The whole file is rewritten on every update.
type Ledger struct {
	path string
	loc  *time.Location
	now  func() time.Time
}

// New creates a ledger stored at path. Timestamps are recorded in loc.
func New(path string, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{path: path, loc: loc, now: time.Now}
}

// WithClock replaces the time source, for tests and replays.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// Key normalizes a dataset path into its ledger key.
func Key(datasetPath string) string {
	return filepath.ToSlash(filepath.Clean(datasetPath))
}

// Load reads every entry. Duplicate keys collapse to their most recent timestamp.
// A missing ledger file yields an empty map and os.ErrNotExist.
func (l *Ledger) Load() (map[string]time.Time, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return map[string]time.Time{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	entries := make(map[string]time.Time)
	duplicates := 0
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse ledger %s: %w", l.path, err)
		}
		line++
		if line == 1 && len(record) >= 2 && record[0] == header[0] {
			continue
		}
		if len(record) < 2 {
			log.Warn().Str("ledger", l.path).Int("line", line).Msg("Skipping malformed ledger row")
			continue
		}

		ts, err := l.parseTimestamp(record[1])
		if err != nil {
			log.Warn().Err(err).Str("ledger", l.path).Int("line", line).Msg("Skipping ledger row with bad timestamp")
			continue
		}

		key := Key(record[0])
		if prev, ok := entries[key]; ok {
			duplicates++
			if prev.After(ts) {
				continue
			}
		}
		entries[key] = ts
	}

	if duplicates > 0 {
		log.Info().
			Str("ledger", l.path).
			Int("duplicates", duplicates).
			Msg("Duplicate ledger entries consolidated, keeping most recent")
	}

	return entries, nil
}

func (l *Ledger) parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(l.loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, l.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// RecordSync sets the entry for datasetPath to now.
// An unreadable ledger is replaced rather than blocking the write.
func (l *Ledger) RecordSync(datasetPath string) error {
	entries, err := l.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("ledger", l.path).Msg("Ledger unreadable, starting a fresh one")
		entries = map[string]time.Time{}
	}

	entries[Key(datasetPath)] = l.now().In(l.loc)
	if err := l.save(entries); err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", datasetPath, err)
	}
	return nil
}

// LastSync returns when datasetPath was last confirmed in sync.
// Without a ledger entry the dataset file's modification time is used.
// A ledger that exists but cannot be parsed is reported as an error.
func (l *Ledger) LastSync(datasetPath string) (time.Time, error) {
	entries, err := l.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return time.Time{}, err
	}
	if ts, ok := entries[Key(datasetPath)]; ok {
		return ts, nil
	}

	info, err := os.Stat(datasetPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("no sync record for %s: %w", datasetPath, err)
	}
	log.Debug().Str("dataset", datasetPath).Msg("No ledger entry, using file modification time")
	return info.ModTime().In(l.loc), nil
}

func (l *Ledger) save(entries map[string]time.Time) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	tmpPath := l.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := csv.NewWriter(f)
	_ = w.Write(header)
	for _, k := range keys {
		_ = w.Write([]string{k, entries[k].Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, l.path)
}
