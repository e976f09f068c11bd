package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Canonical column names of the cleaned units table.
const (
	ColUnit        = "nombre_unidad"
	ColProject     = "nombre_proyecto"
	ColSubdivision = "nombre_subdivision"
	ColTypology    = "nombre_tipologia"
	ColFloor       = "PISO"
	ColPrice       = "precio_lista"
	ColArea        = "area_total"
	ColMonth       = "mes"

	ColReservations = "separaciones"
	ColDate         = "fecha"
)

// ColumnMap renames source export headers to canonical column names.
type ColumnMap struct {
	Aliases map[string]string `yaml:"aliases"`
}

// DefaultColumnMap mirrors the headers of the CRM export the pipeline was
// built for.
func DefaultColumnMap() *ColumnMap {
	return &ColumnMap{Aliases: map[string]string{
		"nombre":     ColUnit,
		"proyecto":   ColProject,
		"torre":      ColSubdivision,
		"tipologia":  ColTypology,
		"piso":       ColFloor,
		"precio":     ColPrice,
		"area":       ColArea,
		"month":      ColMonth,
		"date":       ColDate,
		"reservas":   ColReservations,
		"separacion": ColReservations,
	}}
}

// LoadColumnMap reads aliases from a YAML file. An empty path or a missing
// file yields the defaults; file entries override default entries.
//
//	aliases:
//	  tower: nombre_subdivision
//	  list_price: precio_lista
func LoadColumnMap(path string) (*ColumnMap, error) {
	cm := DefaultColumnMap()
	if path == "" {
		return cm, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read column map: %w", err)
	}

	var fromFile ColumnMap
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return nil, fmt.Errorf("config: parse column map: %w", err)
	}
	for src, dst := range fromFile.Aliases {
		cm.Aliases[src] = dst
	}
	return cm, nil
}

// Canonical returns the canonical name for a source header. Headers without
// an alias pass through unchanged.
func (m *ColumnMap) Canonical(header string) string {
	if m == nil {
		return header
	}
	if dst, ok := m.Aliases[header]; ok {
		return dst
	}
	return header
}
