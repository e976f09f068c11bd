package models

import (
	"strings"
	"time"
)

// KeyPart is one component of a grouping key. A missing source value is
// the Unknown variant, never "".
type KeyPart struct {
	Value string
	Known bool
}

// Known wraps a present value. Blank input yields Unknown.
func Known(v string) KeyPart {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown()
	}
	return KeyPart{Value: v, Known: true}
}

// Unknown is the missing-value variant.
func Unknown() KeyPart { return KeyPart{} }

// String renders the value, or an empty string for Unknown.
func (k KeyPart) String() string {
	if !k.Known {
		return ""
	}
	return k.Value
}

// Label is String but shows Unknown explicitly, for logs and chart titles.
func (k KeyPart) Label() string {
	if !k.Known {
		return "(unknown)"
	}
	return k.Value
}

// Compare orders known values lexically and puts Unknown last.
func (k KeyPart) Compare(o KeyPart) int {
	switch {
	case k.Known && !o.Known:
		return -1
	case !k.Known && o.Known:
		return 1
	case !k.Known && !o.Known:
		return 0
	}
	return strings.Compare(k.Value, o.Value)
}

// RawUnit holds one unprocessed row of the units export, column name to
// cell text, after column aliases have been applied.
type RawUnit struct {
	Line   int
	Fields map[string]string
}

// Unit is a cleaned, validated listing ready for analysis.
type Unit struct {
	Project      KeyPart
	Subdivision  KeyPart
	Typology     KeyPart
	Name         KeyPart
	Floor        int
	Price        float64
	Area         *float64
	PricePerArea *float64
	// Month is the listing month for the elasticity panel; zero when the
	// export has no month column.
	Month time.Time
}

// PriceField selects which price a curve or monotonicity check runs on.
type PriceField string

const (
	PriceList    PriceField = "list"
	PricePerArea PriceField = "per_area"
)

// PriceOf returns the selected price and whether the unit has it.
func (u *Unit) PriceOf(f PriceField) (float64, bool) {
	if f == PricePerArea {
		if u.PricePerArea == nil {
			return 0, false
		}
		return *u.PricePerArea, true
	}
	return u.Price, true
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
