package utils

import (
	"testing"
	"time"
)

func TestParseDateLayouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2025-10", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-10-15", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"2025-10-15T08:30:00Z", time.Date(2025, 10, 15, 8, 30, 0, 0, time.UTC)},
		{"05/10/2025", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)},
		{"15/10/2025", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{" 2025/03 ", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.raw)
		if !ok {
			t.Errorf("ParseDate(%q): not ok", tt.raw)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v; want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "soon", "2025-13"} {
		if _, ok := ParseDate(raw); ok {
			t.Errorf("ParseDate(%q) should fail", raw)
		}
	}
}

func TestMonthLabel(t *testing.T) {
	got := MonthLabel(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	if got != "2024-02" {
		t.Errorf("MonthLabel = %q; want 2024-02", got)
	}
}
