package services

import (
	"sort"

	"unit-pricing/models"
	"unit-pricing/utils"
)

// CheckMonotonicity walks one group ascending by floor and flags every unit
// priced above its immediate predecessor by more than tolerance
// (current > previous * (1 + tolerance)). The predecessor always advances,
// so a unit is only ever compared with the unit right below it. Units on
// the same floor keep their input order.
func CheckMonotonicity(units []*models.Unit, field models.PriceField, tolerance float64) []models.Violation {
	ordered := make([]*models.Unit, 0, len(units))
	for _, u := range units {
		if _, ok := u.PriceOf(field); ok {
			ordered = append(ordered, u)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Floor < ordered[j].Floor })

	var out []models.Violation
	var prev *models.Unit
	var prevPrice float64

	for _, u := range ordered {
		price, _ := u.PriceOf(field)
		if prev != nil && price > prevPrice*(1+tolerance) {
			v := models.Violation{
				Project:        u.Project,
				Subdivision:    u.Subdivision,
				Typology:       u.Typology,
				Unit:           u.Name,
				Floor:          u.Floor,
				CurrentPrice:   price,
				ReferenceFloor: prev.Floor,
				ReferencePrice: prevPrice,
				Delta:          price - prevPrice,
			}
			if prevPrice != 0 {
				v.DeltaPct = (price - prevPrice) / prevPrice * 100
			}
			out = append(out, v)
		}
		prev = u
		prevPrice = price
	}
	return out
}

// MonotonicityChecker runs CheckMonotonicity over all groups.
type MonotonicityChecker struct {
	logger    *utils.Logger
	field     models.PriceField
	tolerance float64
	workers   int
}

// NewMonotonicityChecker creates a checker. tolerance is a fraction.
func NewMonotonicityChecker(logger *utils.Logger, field models.PriceField, tolerance float64, workers int) *MonotonicityChecker {
	if tolerance <= 0 {
		tolerance = DefaultMonotonicityTolerance
	}
	return &MonotonicityChecker{logger: logger, field: field, tolerance: tolerance, workers: workers}
}

// Check returns the violations of every group, in group order.
func (m *MonotonicityChecker) Check(groups []Group) []models.Violation {
	pool := utils.NewWorkerPool(m.workers, 0)
	perGroup := utils.MapIndexed(pool, len(groups), func(i int) []models.Violation {
		return CheckMonotonicity(groups[i].Units, m.field, m.tolerance)
	})

	var out []models.Violation
	for _, vs := range perGroup {
		out = append(out, vs...)
	}
	m.logger.Info("[monotonicity] %d units priced above the floor below them (tolerance %.1f%%)",
		len(out), m.tolerance*100)
	return out
}
