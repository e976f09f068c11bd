package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CURVE_TOLERANCE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CurveTolerance != 0.03 {
		t.Errorf("CurveTolerance: got %v, want 0.03", cfg.CurveTolerance)
	}
	if cfg.MonotonicityTolerance != 0.01 {
		t.Errorf("MonotonicityTolerance: got %v, want 0.01", cfg.MonotonicityTolerance)
	}
	if cfg.PriceField != "list" {
		t.Errorf("PriceField: got %q, want list", cfg.PriceField)
	}
	if cfg.ForecastHorizonDays != 90 {
		t.Errorf("ForecastHorizonDays: got %d, want 90", cfg.ForecastHorizonDays)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CURVE_TOLERANCE", "0.05")
	t.Setenv("MONOTONICITY_TOLERANCE", "0.02")
	t.Setenv("PRICE_FIELD", "PER_AREA")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CurveTolerance != 0.05 || cfg.MonotonicityTolerance != 0.02 {
		t.Errorf("tolerances: got %v/%v, want 0.05/0.02", cfg.CurveTolerance, cfg.MonotonicityTolerance)
	}
	if cfg.PriceField != "per_area" {
		t.Errorf("PriceField: got %q, want per_area", cfg.PriceField)
	}
}

func TestLoadRejectsBadTolerance(t *testing.T) {
	t.Setenv("CURVE_TOLERANCE", "1.5")
	if _, err := Load(); err == nil {
		t.Error("expected validation error for tolerance >= 1")
	}
}

func TestLoadRejectsMalformedTolerance(t *testing.T) {
	for _, key := range []string{"CURVE_TOLERANCE", "MONOTONICITY_TOLERANCE"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "3%")
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=3%%", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q should name %s", err, key)
			}
		})
	}
}

func TestLoadRequiresSMTPWhenEmailEnabled(t *testing.T) {
	t.Setenv("SEND_EMAIL", "true")
	t.Setenv("GMAIL_USER", "")
	if _, err := Load(); err == nil {
		t.Error("expected validation error when email is enabled without credentials")
	}
}

func TestLoadColumnMapMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	data := "aliases:\n  tower: nombre_subdivision\n  torre: custom_tower\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := LoadColumnMap(path)
	if err != nil {
		t.Fatalf("LoadColumnMap: %v", err)
	}
	if got := cm.Canonical("tower"); got != ColSubdivision {
		t.Errorf("Canonical(tower) = %q; want %q", got, ColSubdivision)
	}
	if got := cm.Canonical("torre"); got != "custom_tower" {
		t.Errorf("Canonical(torre) = %q; want custom_tower", got)
	}
	if got := cm.Canonical("proyecto"); got != ColProject {
		t.Errorf("Canonical(proyecto) = %q; want %q", got, ColProject)
	}
	if got := cm.Canonical("PISO"); got != "PISO" {
		t.Errorf("Canonical(PISO) = %q; want passthrough", got)
	}
}

func TestLoadColumnMapMissingFile(t *testing.T) {
	cm, err := LoadColumnMap(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cm.Canonical("nombre") != ColUnit {
		t.Error("expected default aliases for a missing file")
	}
}
