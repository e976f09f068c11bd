package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"unit-pricing/config"
	"unit-pricing/models"
	"unit-pricing/utils"
)

// ErrMissingColumns is returned when required columns are absent from a
// file header. The error text names every missing column.
var ErrMissingColumns = errors.New("missing required columns")

// UnitColumns must be present in the units export.
var UnitColumns = []string{
	config.ColProject, config.ColSubdivision, config.ColTypology, config.ColFloor, config.ColPrice,
}

// ReservationColumns must be present in the reservations export, plus the
// date column chosen by the caller.
var ReservationColumns = []string{
	config.ColProject, config.ColTypology, config.ColReservations,
}

// CSVReader loads exports into raw rows keyed by canonical column name.
type CSVReader struct {
	columns *config.ColumnMap
}

// NewCSVReader creates a reader that renames headers with columns.
func NewCSVReader(columns *config.ColumnMap) *CSVReader {
	return &CSVReader{columns: columns}
}

// ReadFile opens path and reads it with Read.
func (r *CSVReader) ReadFile(path string, required ...string) ([]*models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := r.Read(f, required...)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	return rows, nil
}

// Read parses a CSV stream with a header row. Delimiter is auto-detected
// between ',' and ';'. Line numbers in the result are 1-based file lines.
func (r *CSVReader) Read(in io.Reader, required ...string) ([]*models.RawUnit, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = detectDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	names := make([]string, len(header))
	seen := utils.NewKeySet()
	for i, h := range header {
		names[i] = r.columns.Canonical(strings.TrimSpace(h))
		if !seen.Add(names[i]) {
			return nil, fmt.Errorf("header: column %q appears more than once after renaming", names[i])
		}
	}

	var missing []string
	for _, col := range required {
		if !seen.Contains(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var rows []*models.RawUnit
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(names))
		for i, name := range names {
			if i < len(rec) {
				fields[name] = rec[i]
			}
		}
		rows = append(rows, &models.RawUnit{Line: line, Fields: fields})
	}
	return rows, nil
}

func detectDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}
