package services

import (
	"database/sql"
	"sort"
	"time"

	"unit-pricing/models"
)

type panelKey struct {
	project  string
	typology string
	month    time.Time
}

type priceAgg struct {
	sum   float64
	count int
}

// BuildElasticityPanel joins mean list price and summed reservations per
// (project, typology, month), then computes month-over-month percent
// changes and elasticity = pctDeltaQ / pctDeltaP within each series.
//
// Units without a month, and rows whose project or typology is unknown,
// are left out. Months present on only one side are dropped. Percent
// changes are null for the first month of a series and when the previous
// value is zero; elasticity is null when either change is null or the
// price change is zero.
func BuildElasticityPanel(units []*models.Unit, reservations []models.Reservation) []models.ElasticityRow {
	prices := make(map[panelKey]*priceAgg)
	for _, u := range units {
		if u.Month.IsZero() || !u.Project.Known || !u.Typology.Known {
			continue
		}
		k := panelKey{u.Project.Value, u.Typology.Value, models.MonthStart(u.Month)}
		agg, ok := prices[k]
		if !ok {
			agg = &priceAgg{}
			prices[k] = agg
		}
		agg.sum += u.Price
		agg.count++
	}

	qty := make(map[panelKey]float64)
	for _, r := range reservations {
		if !r.Project.Known || !r.Typology.Known {
			continue
		}
		k := panelKey{r.Project.Value, r.Typology.Value, models.MonthStart(r.Date)}
		qty[k] += r.Count
	}

	rows := make([]models.ElasticityRow, 0, len(prices))
	for k, agg := range prices {
		q, ok := qty[k]
		if !ok {
			continue
		}
		rows = append(rows, models.ElasticityRow{
			Project:      k.project,
			Typology:     k.typology,
			Month:        k.month,
			MeanPrice:    agg.sum / float64(agg.count),
			Reservations: q,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		if a.Typology != b.Typology {
			return a.Typology < b.Typology
		}
		return a.Month.Before(b.Month)
	})

	for i := range rows {
		if i == 0 || rows[i-1].Project != rows[i].Project || rows[i-1].Typology != rows[i].Typology {
			continue
		}
		prev, cur := &rows[i-1], &rows[i]
		cur.PctDeltaP = pctChange(prev.MeanPrice, cur.MeanPrice)
		cur.PctDeltaQ = pctChange(prev.Reservations, cur.Reservations)
		if cur.PctDeltaP.Valid && cur.PctDeltaQ.Valid && cur.PctDeltaP.Float64 != 0 {
			cur.Elasticity = sql.NullFloat64{Float64: cur.PctDeltaQ.Float64 / cur.PctDeltaP.Float64, Valid: true}
		}
	}
	return rows
}

func pctChange(prev, cur float64) sql.NullFloat64 {
	if prev == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: (cur - prev) / prev, Valid: true}
}

// SeriesKey identifies one (project, typology) reservation series.
type SeriesKey struct {
	Project  string
	Typology string
}

// SplitSeries groups reservations by (project, typology) in first-seen
// order, each series sorted by date. Reservations with an unknown project
// or typology are skipped.
func SplitSeries(reservations []models.Reservation) ([]SeriesKey, map[SeriesKey][]models.Reservation) {
	var order []SeriesKey
	series := make(map[SeriesKey][]models.Reservation)
	for _, r := range reservations {
		if !r.Project.Known || !r.Typology.Known {
			continue
		}
		k := SeriesKey{r.Project.Value, r.Typology.Value}
		if _, ok := series[k]; !ok {
			order = append(order, k)
		}
		series[k] = append(series[k], r)
	}
	for _, k := range order {
		s := series[k]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	}
	return order, series
}
