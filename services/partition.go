package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"unit-pricing/models"
)

// ErrUnknownField is returned when a grouping field name is not recognised.
var ErrUnknownField = errors.New("unknown grouping field")

// KeyField names a unit attribute usable as a grouping key component.
type KeyField string

const (
	FieldProject     KeyField = "project"
	FieldSubdivision KeyField = "subdivision"
	FieldTypology    KeyField = "typology"
)

// CurveGroupFields is the grouping used for price curves and the
// monotonicity check.
var CurveGroupFields = []KeyField{FieldProject, FieldSubdivision, FieldTypology}

// GroupKey is an ordered tuple of key parts, one per grouping field.
type GroupKey []models.KeyPart

// Compare orders keys component by component, Unknown after known values.
func (k GroupKey) Compare(o GroupKey) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := k[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	return len(k) - len(o)
}

// String joins the labels of each part with " / ".
func (k GroupKey) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = p.Label()
	}
	return strings.Join(parts, " / ")
}

// id is a map key that keeps Unknown distinct from any real value.
func (k GroupKey) id() string {
	var b strings.Builder
	for _, p := range k {
		if p.Known {
			b.WriteByte('+')
			b.WriteString(p.Value)
		} else {
			b.WriteByte('?')
		}
		b.WriteByte(0)
	}
	return b.String()
}

// Group is the set of units sharing one key, in input order.
type Group struct {
	Key   GroupKey
	Units []*models.Unit
}

func fieldValue(u *models.Unit, f KeyField) (models.KeyPart, error) {
	switch f {
	case FieldProject:
		return u.Project, nil
	case FieldSubdivision:
		return u.Subdivision, nil
	case FieldTypology:
		return u.Typology, nil
	}
	return models.KeyPart{}, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// Partition splits units into disjoint groups by the given fields. Missing
// key values form their own groups. Groups come back in ascending key
// order with Unknown components last.
func Partition(units []*models.Unit, fields ...KeyField) ([]Group, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("partition: %w: no fields given", ErrUnknownField)
	}
	for _, f := range fields {
		if _, err := fieldValue(&models.Unit{}, f); err != nil {
			return nil, fmt.Errorf("partition: %w", err)
		}
	}

	index := make(map[string]int)
	var groups []Group

	for _, u := range units {
		key := make(GroupKey, len(fields))
		for i, f := range fields {
			key[i], _ = fieldValue(u, f)
		}

		id := key.id()
		pos, ok := index[id]
		if !ok {
			pos = len(groups)
			index[id] = pos
			groups = append(groups, Group{Key: key})
		}
		groups[pos].Units = append(groups[pos].Units, u)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key.Compare(groups[j].Key) < 0
	})
	return groups, nil
}
