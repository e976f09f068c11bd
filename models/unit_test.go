package models

import (
	"sort"
	"testing"
	"time"
)

func TestKnownTrimsAndDetectsBlank(t *testing.T) {
	if k := Known("  T1 "); !k.Known || k.Value != "T1" {
		t.Errorf("Known(\"  T1 \") = %+v", k)
	}
	if k := Known("   "); k.Known {
		t.Errorf("blank input should be Unknown, got %+v", k)
	}
	if Unknown().String() != "" || Unknown().Label() != "(unknown)" {
		t.Errorf("unexpected Unknown rendering: %q / %q", Unknown().String(), Unknown().Label())
	}
}

func TestKeyPartCompareUnknownLast(t *testing.T) {
	parts := []KeyPart{Unknown(), Known("B"), Known("A"), Unknown()}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Compare(parts[j]) < 0 })

	want := []string{"A", "B", "(unknown)", "(unknown)"}
	for i, p := range parts {
		if p.Label() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, p.Label(), want[i])
		}
	}
}

func TestPriceOf(t *testing.T) {
	ppa := 3000.0
	u := &Unit{Price: 210000, PricePerArea: &ppa}

	if v, ok := u.PriceOf(PriceList); !ok || v != 210000 {
		t.Errorf("list price: got %v, %v", v, ok)
	}
	if v, ok := u.PriceOf(PricePerArea); !ok || v != 3000 {
		t.Errorf("per-area price: got %v, %v", v, ok)
	}
	if _, ok := (&Unit{Price: 1}).PriceOf(PricePerArea); ok {
		t.Error("unit without area should have no per-area price")
	}
}

func TestMonthStart(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	got := MonthStart(time.Date(2024, 3, 31, 22, 0, 0, 0, lima))
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("MonthStart = %v, want %v", got, want)
	}
}
