package storage

import (
	"time"

	"unit-pricing/models"
	"unit-pricing/utils"
)

// Table is a header plus rows of cell values. A nil cell is written as an
// empty cell in every output format.
type Table struct {
	Header []string
	Rows   [][]any
}

var EvaluationHeader = []string{
	"project", "subdivision", "typology", "unit", "floor",
	"real_price", "expected_price", "delta", "delta_pct",
	"state", "suggested_price", "recommendation",
}

var ViolationHeader = []string{
	"project", "subdivision", "typology", "unit", "floor",
	"current_price", "reference_floor", "reference_price", "delta", "delta_pct",
}

var ElasticityHeader = []string{
	"project", "typology", "month", "mean_price", "reservations",
	"pct_delta_p", "pct_delta_q", "elasticity",
}

var ForecastHeader = []string{"ds", "yhat", "yhat_lower", "yhat_upper"}

func keyCell(k models.KeyPart) any {
	if !k.Known {
		return nil
	}
	return k.Value
}

// EvaluationTable lays out evaluations in report column order.
func EvaluationTable(evs []models.Evaluation) Table {
	t := Table{Header: EvaluationHeader, Rows: make([][]any, 0, len(evs))}
	for _, e := range evs {
		t.Rows = append(t.Rows, []any{
			keyCell(e.Project), keyCell(e.Subdivision), keyCell(e.Typology), keyCell(e.Unit), e.Floor,
			e.RealPrice, e.ExpectedPrice, e.Delta, e.DeltaPct,
			string(e.State), e.SuggestedPrice, e.Recommendation,
		})
	}
	return t
}

// ViolationTable lays out monotonicity violations.
func ViolationTable(vs []models.Violation) Table {
	t := Table{Header: ViolationHeader, Rows: make([][]any, 0, len(vs))}
	for _, v := range vs {
		t.Rows = append(t.Rows, []any{
			keyCell(v.Project), keyCell(v.Subdivision), keyCell(v.Typology), keyCell(v.Unit), v.Floor,
			v.CurrentPrice, v.ReferenceFloor, v.ReferencePrice, v.Delta, v.DeltaPct,
		})
	}
	return t
}

// ElasticityTable lays out the elasticity panel; undefined values are nil.
func ElasticityTable(rows []models.ElasticityRow) Table {
	t := Table{Header: ElasticityHeader, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		row := []any{r.Project, r.Typology, utils.MonthLabel(r.Month), r.MeanPrice, r.Reservations, nil, nil, nil}
		if r.PctDeltaP.Valid {
			row[5] = r.PctDeltaP.Float64
		}
		if r.PctDeltaQ.Valid {
			row[6] = r.PctDeltaQ.Float64
		}
		if r.Elasticity.Valid {
			row[7] = r.Elasticity.Float64
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ForecastTable lays out forecast points.
func ForecastTable(points []models.ForecastPoint) Table {
	t := Table{Header: ForecastHeader, Rows: make([][]any, 0, len(points))}
	for _, p := range points {
		t.Rows = append(t.Rows, []any{p.Date.Format(time.DateOnly), p.Yhat, p.Lower, p.Upper})
	}
	return t
}
