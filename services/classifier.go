package services

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"unit-pricing/models"
	"unit-pricing/utils"
)

const (
	DefaultCurveTolerance        = 0.03
	DefaultMonotonicityTolerance = 0.01
)

// Classifier compares a unit's price to its group curve and recommends
// an adjustment.
type Classifier struct {
	tolerance float64
	currency  string
	printer   *message.Printer
}

// NewClassifier creates a Classifier. tolerance is a fraction (0.03 = 3%).
func NewClassifier(tolerance float64, currency string) *Classifier {
	if tolerance <= 0 {
		tolerance = DefaultCurveTolerance
	}
	return &Classifier{
		tolerance: tolerance,
		currency:  currency,
		printer:   message.NewPrinter(language.English),
	}
}

// Classify evaluates one unit against its group's curve.
func (c *Classifier) Classify(u *models.Unit, curve Curve, field models.PriceField) models.Evaluation {
	actual, _ := u.PriceOf(field)
	ev := models.Evaluation{
		Project:     u.Project,
		Subdivision: u.Subdivision,
		Typology:    u.Typology,
		Unit:        u.Name,
		Floor:       u.Floor,
		RealPrice:   actual,
	}

	if !curve.Valid {
		ev.ExpectedPrice = actual
		ev.State = models.StateNoCurve
		ev.SuggestedPrice = actual
		ev.Recommendation = "Insufficient per-floor data; review manually."
		return ev
	}

	expected := curve.At(u.Floor)
	delta := actual - expected
	pct := 0.0
	if expected != 0 {
		pct = delta / expected
	}

	ev.ExpectedPrice = expected
	ev.Delta = delta
	ev.DeltaPct = pct * 100

	switch {
	case pct > c.tolerance:
		ev.State = models.StateAbove
		ev.SuggestedPrice = RoundToHundred(expected)
		ev.Recommendation = c.printer.Sprintf(
			"Price above curve (+%.1f%%). Consider LOWERING to ~%s %.0f (Δ %s %.0f).",
			pct*100, c.currency, ev.SuggestedPrice, c.currency, delta)
	case pct < -c.tolerance:
		ev.State = models.StateBelow
		ev.SuggestedPrice = RoundToHundred(expected)
		ev.Recommendation = c.printer.Sprintf(
			"Price below curve (%.1f%%). Consider RAISING to ~%s %.0f (Δ %s %.0f).",
			pct*100, c.currency, ev.SuggestedPrice, c.currency, math.Abs(delta))
	default:
		ev.State = models.StateInLine
		ev.SuggestedPrice = actual
		ev.Recommendation = "Price in line with curve; keep unchanged."
	}
	return ev
}

// RoundToHundred rounds v to the nearest multiple of 100, halves away
// from zero.
func RoundToHundred(v float64) float64 {
	return decimal.NewFromFloat(v).Round(-2).InexactFloat64()
}

// Evaluator runs curve fitting and classification over all groups.
type Evaluator struct {
	logger     *utils.Logger
	classifier *Classifier
	field      models.PriceField
	workers    int
}

// NewEvaluator creates an Evaluator that processes up to workers groups
// at a time.
func NewEvaluator(logger *utils.Logger, classifier *Classifier, field models.PriceField, workers int) *Evaluator {
	return &Evaluator{logger: logger, classifier: classifier, field: field, workers: workers}
}

// Evaluate returns one evaluation per unit, sorted for presentation.
func (e *Evaluator) Evaluate(groups []Group) []models.Evaluation {
	pool := utils.NewWorkerPool(e.workers, 0)
	perGroup := utils.MapIndexed(pool, len(groups), func(i int) []models.Evaluation {
		return e.EvaluateGroup(groups[i])
	})

	var out []models.Evaluation
	curveless := 0
	for i, evs := range perGroup {
		if len(evs) > 0 && evs[0].State == models.StateNoCurve {
			curveless++
			e.logger.Debug("[pricing] Group %s has no curve (%d units)", groups[i].Key, len(evs))
		}
		out = append(out, evs...)
	}

	SortEvaluations(out)
	e.logger.Info("[pricing] Evaluated %d units in %d groups (%d without curve)",
		len(out), len(groups), curveless)
	return out
}

// EvaluateGroup fits the group's curve and classifies each of its units
// in input order.
func (e *Evaluator) EvaluateGroup(g Group) []models.Evaluation {
	curve := FitCurve(g.Units, e.field)
	out := make([]models.Evaluation, 0, len(g.Units))
	for _, u := range g.Units {
		if _, ok := u.PriceOf(e.field); !ok {
			continue
		}
		out = append(out, e.classifier.Classify(u, curve, e.field))
	}
	return out
}

// SortEvaluations orders by project, sub-division and typology ascending,
// then by delta percent descending so the worst over-pricing comes first
// within each group. Ties keep their relative order.
func SortEvaluations(evs []models.Evaluation) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if c := a.Project.Compare(b.Project); c != 0 {
			return c < 0
		}
		if c := a.Subdivision.Compare(b.Subdivision); c != 0 {
			return c < 0
		}
		if c := a.Typology.Compare(b.Typology); c != 0 {
			return c < 0
		}
		return a.DeltaPct > b.DeltaPct
	})
}
