package services

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"unit-pricing/models"
)

// Curve is the expected price as a linear function of floor.
// Valid is false for curve-less groups (fewer than two distinct floors).
type Curve struct {
	Slope     float64
	Intercept float64
	Valid     bool
	Floors    int
}

// At evaluates the curve at floor.
func (c Curve) At(floor int) float64 {
	return c.Slope*float64(floor) + c.Intercept
}

// FloorMean is the average price of the units on one floor.
type FloorMean struct {
	Floor int
	Mean  float64
	Units int
}

// FloorMeans averages the selected price per distinct floor, ascending by
// floor. Units lacking the selected price are skipped.
func FloorMeans(units []*models.Unit, field models.PriceField) []FloorMean {
	byFloor := make(map[int][]float64)
	for _, u := range units {
		p, ok := u.PriceOf(field)
		if !ok {
			continue
		}
		byFloor[u.Floor] = append(byFloor[u.Floor], p)
	}

	out := make([]FloorMean, 0, len(byFloor))
	for floor, prices := range byFloor {
		out = append(out, FloorMean{Floor: floor, Mean: stat.Mean(prices, nil), Units: len(prices)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Floor < out[j].Floor })
	return out
}

// FitCurve fits price = slope*floor + intercept by ordinary least squares
// through the per-floor mean prices of one group.
func FitCurve(units []*models.Unit, field models.PriceField) Curve {
	means := FloorMeans(units, field)
	if len(means) < 2 {
		return Curve{Floors: len(means)}
	}

	xs := make([]float64, len(means))
	ys := make([]float64, len(means))
	for i, m := range means {
		xs[i] = float64(m.Floor)
		ys[i] = m.Mean
	}

	slope, intercept := FitLine(xs, ys)
	return Curve{Slope: slope, Intercept: intercept, Valid: true, Floors: len(means)}
}

// FitLine is an unweighted OLS fit of ys on xs. Callers must supply at
// least two distinct x values.
func FitLine(xs, ys []float64) (slope, intercept float64) {
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta, alpha
}
