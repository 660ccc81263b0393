package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jpoints/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// ReadDataset loads a dataset file. Unknown columns, including a leading
// positional index column left by older writers, are dropped.
func ReadDataset(path string) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := DecodeDataset(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("rows", len(ds)).Msg("Dataset loaded")
	return ds, nil
}

// DecodeDataset parses dataset CSV content.
func DecodeDataset(r io.Reader) (models.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return models.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	known := make(map[int]string, len(header))
	for i, col := range header {
		if _, ok := models.ColumnSchema[col]; ok {
			known[i] = col
		}
	}
	if !hasColumn(header, models.ColSectionNo) {
		return nil, fmt.Errorf("missing %s column", models.ColSectionNo)
	}

	ds := models.Dataset{}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line+1, err)
		}
		line++

		row := make(models.RawRow, len(known))
		for i, col := range known {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		m, err := row.ToMatch()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		ds = append(ds, *m)
	}

	return ds, nil
}

// WriteDataset replaces the dataset file at path, ordered by section and index.
func WriteDataset(path string, ds models.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if err := EncodeDataset(f, ds); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// EncodeDataset writes ds as CSV with a header row.
func EncodeDataset(w io.Writer, ds models.Dataset) error {
	sorted := ds.SortBySection()
	cols := sorted.Columns()

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(cols))
	for i := range sorted {
		for j, col := range cols {
			record[j] = sorted[i].Field(col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func hasColumn(header []string, col string) bool {
	for _, h := range header {
		if h == col {
			return true
		}
	}
	return false
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}
