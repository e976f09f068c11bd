package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"unit-pricing/models"
	"unit-pricing/utils"
)

// unitRow is the on-disk layout of the cleaned units table. Optional
// columns map to pointers so missing keys survive the round trip.
type unitRow struct {
	Unit         *string  `parquet:"nombre_unidad,optional"`
	Project      *string  `parquet:"nombre_proyecto,optional"`
	Subdivision  *string  `parquet:"nombre_subdivision,optional"`
	Typology     *string  `parquet:"nombre_tipologia,optional"`
	Floor        int64    `parquet:"PISO"`
	Price        float64  `parquet:"precio_lista"`
	Area         *float64 `parquet:"area_total,optional"`
	PricePerArea *float64 `parquet:"precio_m2,optional"`
	Month        *string  `parquet:"mes,optional"`
}

// ParquetStore persists the cleaned units between the etl and analysis
// stages.
type ParquetStore struct {
	path string
}

func NewParquetStore(path string) *ParquetStore {
	return &ParquetStore{path: path}
}

func (s *ParquetStore) Path() string { return s.path }

// Exists reports whether the intermediate file is present.
func (s *ParquetStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// WriteUnits replaces the file with units.
func (s *ParquetStore) WriteUnits(units []*models.Unit) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("parquet: create dir: %w", err)
	}

	rows := make([]unitRow, len(units))
	for i, u := range units {
		rows[i] = unitRow{
			Unit:         keyPtr(u.Name),
			Project:      keyPtr(u.Project),
			Subdivision:  keyPtr(u.Subdivision),
			Typology:     keyPtr(u.Typology),
			Floor:        int64(u.Floor),
			Price:        u.Price,
			Area:         u.Area,
			PricePerArea: u.PricePerArea,
		}
		if !u.Month.IsZero() {
			m := utils.MonthLabel(u.Month)
			rows[i].Month = &m
		}
	}

	if err := parquet.WriteFile(s.path, rows); err != nil {
		return fmt.Errorf("parquet: write %q: %w", s.path, err)
	}
	return nil
}

// ReadUnits loads the cleaned units in file order.
func (s *ParquetStore) ReadUnits() ([]*models.Unit, error) {
	rows, err := parquet.ReadFile[unitRow](s.path)
	if err != nil {
		return nil, fmt.Errorf("parquet: read %q: %w", s.path, err)
	}

	units := make([]*models.Unit, len(rows))
	for i, r := range rows {
		u := &models.Unit{
			Name:         keyFromPtr(r.Unit),
			Project:      keyFromPtr(r.Project),
			Subdivision:  keyFromPtr(r.Subdivision),
			Typology:     keyFromPtr(r.Typology),
			Floor:        int(r.Floor),
			Price:        r.Price,
			Area:         r.Area,
			PricePerArea: r.PricePerArea,
		}
		if r.Month != nil {
			m, ok := utils.ParseDate(*r.Month)
			if !ok {
				return nil, fmt.Errorf("parquet: row %d: bad month %q", i, *r.Month)
			}
			u.Month = m
		}
		units[i] = u
	}
	return units, nil
}

func keyPtr(k models.KeyPart) *string {
	if !k.Known {
		return nil
	}
	v := k.Value
	return &v
}

func keyFromPtr(p *string) models.KeyPart {
	if p == nil {
		return models.Unknown()
	}
	return models.KeyPart{Value: *p, Known: true}
}
