package services

import (
	"errors"
	"testing"
	"time"

	"unit-pricing/models"
	"unit-pricing/utils"
)

func newTestLogger() *utils.Logger { return utils.Nop() }

func raw(line int, kv ...string) *models.RawUnit {
	r := &models.RawUnit{Line: line, Fields: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields[kv[i]] = kv[i+1]
	}
	return r
}

func TestCleanerParseFloor(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{" 12 ", 12},
		{"4.0", 4},
		{"-1", -1},
		{"1000", 1000},
	}

	for _, tt := range tests {
		got, err := parseFloor(tt.raw)
		if err != nil {
			t.Errorf("parseFloor(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFloor(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerParseFloorRejectsOutOfRange(t *testing.T) {
	for _, s := range []string{"1e30", "9.3e18", "-1e25", "1001", "-101", "2.5"} {
		if got, err := parseFloor(s); !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("parseFloor(%q) = %d, %v; want ErrInvalidNumber", s, got, err)
		}
	}
}

func TestCleanerParseNumberRejectsGarbage(t *testing.T) {
	for _, s := range []string{"abc", "1,200", "S/ 300", "inf"} {
		if _, err := parseNumber(s); !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("parseNumber(%q): expected ErrInvalidNumber, got %v", s, err)
		}
	}
}

func TestCleanerDropsMissingFloorOrPrice(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(2, "nombre_proyecto", "P", "PISO", "", "precio_lista", "100"),
		raw(3, "nombre_proyecto", "P", "PISO", "2", "precio_lista", "NaN"),
		raw(4, "nombre_proyecto", "P", "PISO", "3", "precio_lista", "300"),
	}

	units, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit after dropping missing values, got %d", len(units))
	}
	if units[0].Floor != 3 || units[0].Price != 300 {
		t.Errorf("unexpected unit %+v", units[0])
	}
}

func TestCleanerFailsLoudlyOnNonNumeric(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(7, "PISO", "ground", "precio_lista", "100"),
	}
	_, err := c.Clean(in)
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestCleanerKeepsMissingKeysAsUnknown(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(2, "nombre_proyecto", "Parque", "nombre_subdivision", "", "PISO", "1", "precio_lista", "100"),
	}
	units, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if units[0].Subdivision.Known {
		t.Error("blank sub-division should be Unknown")
	}
	if !units[0].Project.Known || units[0].Project.Value != "Parque" {
		t.Errorf("project: got %+v", units[0].Project)
	}
}

func TestCleanerDerivesPricePerArea(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(2, "PISO", "1", "precio_lista", "300000", "area_total", "60"),
		raw(3, "PISO", "2", "precio_lista", "310000"),
	}
	units, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("units without area should be kept, got %d", len(units))
	}
	if units[0].PricePerArea == nil || *units[0].PricePerArea != 5000 {
		t.Errorf("PricePerArea: got %v, want 5000", units[0].PricePerArea)
	}
	if units[1].PricePerArea != nil {
		t.Errorf("PricePerArea without area: got %v, want nil", *units[1].PricePerArea)
	}
	if _, ok := units[1].PriceOf(models.PricePerArea); ok {
		t.Error("unit without area should have no per-area price")
	}
}

func TestCleanerParsesMonth(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(2, "PISO", "1", "precio_lista", "100", "mes", "2025-10-17"),
	}
	units, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if !units[0].Month.Equal(want) {
		t.Errorf("Month: got %v, want %v", units[0].Month, want)
	}
}

func TestCleanerReservations(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := []*models.RawUnit{
		raw(2, "nombre_proyecto", "P", "nombre_tipologia", "2D", "mes", "2025-01", "separaciones", "4"),
		raw(3, "nombre_proyecto", "P", "nombre_tipologia", "2D", "mes", "", "separaciones", "4"),
	}
	res, err := c.CleanReservations(in, "mes")
	if err != nil {
		t.Fatalf("CleanReservations: %v", err)
	}
	if len(res) != 1 || res[0].Count != 4 {
		t.Errorf("unexpected reservations %+v", res)
	}

	bad := []*models.RawUnit{raw(2, "mes", "2025-01", "separaciones", "four")}
	if _, err := c.CleanReservations(bad, "mes"); !errors.Is(err, ErrInvalidNumber) {
		t.Errorf("expected ErrInvalidNumber, got %v", err)
	}
}
