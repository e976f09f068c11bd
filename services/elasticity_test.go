package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unit-pricing/models"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func pricedUnit(project, typ string, m time.Time, price float64) *models.Unit {
	u := unit(project, "T", typ, "u", 1, price)
	u.Month = m
	return u
}

func reservation(project, typ string, d time.Time, n float64) models.Reservation {
	return models.Reservation{Project: models.Known(project), Typology: models.Known(typ), Date: d, Count: n}
}

func TestElasticityExample(t *testing.T) {
	units := []*models.Unit{
		pricedUnit("P", "2D", month(2025, 1), 90),
		pricedUnit("P", "2D", month(2025, 1), 110),
		pricedUnit("P", "2D", month(2025, 2), 110),
	}
	res := []models.Reservation{
		reservation("P", "2D", month(2025, 1), 6),
		reservation("P", "2D", month(2025, 1).AddDate(0, 0, 14), 4),
		reservation("P", "2D", month(2025, 2), 9),
	}

	panel := BuildElasticityPanel(units, res)
	require.Len(t, panel, 2)

	first := panel[0]
	assert.Equal(t, 100.0, first.MeanPrice)
	assert.Equal(t, 10.0, first.Reservations)
	assert.False(t, first.PctDeltaP.Valid)
	assert.False(t, first.PctDeltaQ.Valid)
	assert.False(t, first.Elasticity.Valid)

	second := panel[1]
	require.True(t, second.Elasticity.Valid)
	assert.InDelta(t, 0.10, second.PctDeltaP.Float64, 1e-12)
	assert.InDelta(t, -0.10, second.PctDeltaQ.Float64, 1e-12)
	assert.InDelta(t, -1.0, second.Elasticity.Float64, 1e-9)
}

func TestElasticityFirstMonthOfEverySeriesIsAbsent(t *testing.T) {
	var units []*models.Unit
	var res []models.Reservation
	for _, p := range []string{"A", "B"} {
		for _, typ := range []string{"1D", "2D"} {
			for m := time.January; m <= time.March; m++ {
				units = append(units, pricedUnit(p, typ, month(2025, m), float64(100+int(m))))
				res = append(res, reservation(p, typ, month(2025, m), float64(10+int(m))))
			}
		}
	}

	panel := BuildElasticityPanel(units, res)
	require.Len(t, panel, 12)
	for i, row := range panel {
		isFirst := i%3 == 0
		assert.Equal(t, isFirst, !row.Elasticity.Valid, "row %d (%s/%s %s)", i, row.Project, row.Typology, row.Month)
		if isFirst {
			assert.Equal(t, month(2025, time.January), row.Month)
		}
	}
}

func TestElasticityInnerJoinDropsOneSidedMonths(t *testing.T) {
	units := []*models.Unit{
		pricedUnit("P", "2D", month(2025, 1), 100),
		pricedUnit("P", "2D", month(2025, 2), 100),
		pricedUnit("P", "2D", month(2025, 3), 120),
	}
	res := []models.Reservation{
		reservation("P", "2D", month(2025, 1), 5),
		reservation("P", "2D", month(2025, 3), 4),
		reservation("P", "2D", month(2025, 4), 4),
	}

	panel := BuildElasticityPanel(units, res)
	require.Len(t, panel, 2)
	assert.Equal(t, month(2025, 3), panel[1].Month)
	// March is compared with January, the previous joined month.
	assert.InDelta(t, 0.2, panel[1].PctDeltaP.Float64, 1e-12)
	assert.InDelta(t, -1.0, panel[1].Elasticity.Float64, 1e-9)
}

func TestElasticityZeroPriceChangeIsAbsent(t *testing.T) {
	units := []*models.Unit{
		pricedUnit("P", "2D", month(2025, 1), 100),
		pricedUnit("P", "2D", month(2025, 2), 100),
	}
	res := []models.Reservation{
		reservation("P", "2D", month(2025, 1), 0),
		reservation("P", "2D", month(2025, 2), 3),
	}

	panel := BuildElasticityPanel(units, res)
	require.Len(t, panel, 2)
	assert.True(t, panel[1].PctDeltaP.Valid)
	assert.Equal(t, 0.0, panel[1].PctDeltaP.Float64)
	assert.False(t, panel[1].PctDeltaQ.Valid, "change from zero reservations is undefined")
	assert.False(t, panel[1].Elasticity.Valid)
}

func TestElasticitySkipsUnknownKeysAndMonthlessUnits(t *testing.T) {
	noMonth := unit("P", "T", "2D", "u", 1, 100)
	unknown := pricedUnit("P", "2D", month(2025, 1), 100)
	unknown.Typology = models.Unknown()

	panel := BuildElasticityPanel([]*models.Unit{noMonth, unknown}, []models.Reservation{
		reservation("P", "2D", month(2025, 1), 5),
	})
	assert.Empty(t, panel)
}

func TestSplitSeries(t *testing.T) {
	res := []models.Reservation{
		reservation("B", "1D", month(2025, 2), 1),
		reservation("A", "2D", month(2025, 1), 2),
		reservation("B", "1D", month(2025, 1), 3),
		{Project: models.Unknown(), Typology: models.Known("1D"), Date: month(2025, 1), Count: 9},
	}
	order, series := SplitSeries(res)
	require.Equal(t, []SeriesKey{{"B", "1D"}, {"A", "2D"}}, order)
	b := series[SeriesKey{"B", "1D"}]
	require.Len(t, b, 2)
	assert.Equal(t, 3.0, b[0].Count)
}
