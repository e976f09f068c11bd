package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"unit-pricing/models"
	"unit-pricing/utils"
)

// WriteExcel saves t as a single-sheet workbook at path, with a bold,
// frozen header row.
func WriteExcel(path, sheet string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("excel: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("excel: rename sheet: %w", err)
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("excel: write header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(max(len(t.Header), 1))
	if err != nil {
		return fmt.Errorf("excel: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("excel: header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("excel: apply header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("excel: column width: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("excel: freeze header: %w", err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("excel: %w", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("excel: write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("excel: save %q: %w", path, err)
	}
	return nil
}

// ReadElasticityPanel loads a panel previously written with WriteExcel.
// Empty cells in the derived columns come back as null values.
func ReadElasticityPanel(path string) ([]models.ElasticityRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("excel: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("excel: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel: %s: %w: empty sheet", path, ErrMissingColumns)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, col := range ElasticityHeader {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("excel: %s: %w: %s", path, ErrMissingColumns, strings.Join(missing, ", "))
	}

	get := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]models.ElasticityRow, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		month, ok := utils.ParseDate(get(row, "month"))
		if !ok {
			return nil, fmt.Errorf("excel: row %d: unparseable month %q", line, get(row, "month"))
		}
		r := models.ElasticityRow{
			Project:  get(row, "project"),
			Typology: get(row, "typology"),
			Month:    month,
		}
		if r.MeanPrice, err = parseCellFloat(get(row, "mean_price")); err != nil {
			return nil, fmt.Errorf("excel: row %d mean_price: %w", line, err)
		}
		if r.Reservations, err = parseCellFloat(get(row, "reservations")); err != nil {
			return nil, fmt.Errorf("excel: row %d reservations: %w", line, err)
		}
		if r.PctDeltaP, err = parseNullFloat(get(row, "pct_delta_p")); err != nil {
			return nil, fmt.Errorf("excel: row %d pct_delta_p: %w", line, err)
		}
		if r.PctDeltaQ, err = parseNullFloat(get(row, "pct_delta_q")); err != nil {
			return nil, fmt.Errorf("excel: row %d pct_delta_q: %w", line, err)
		}
		if r.Elasticity, err = parseNullFloat(get(row, "elasticity")); err != nil {
			return nil, fmt.Errorf("excel: row %d elasticity: %w", line, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseCellFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseNullFloat(s string) (sql.NullFloat64, error) {
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
