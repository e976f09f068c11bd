package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"unit-pricing/models"
)

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"pct":   func(v float64) string { return fmt.Sprintf("%+.1f%%", v) },
	"money": func(v float64) string { return fmt.Sprintf("%.0f", v) },
	"elast": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Pricing report</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; margin: 24px; color: #222; }
h1 { font-size: 20px; margin-bottom: 4px; }
h2 { font-size: 15px; margin-top: 24px; border-bottom: 1px solid #ccc; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { border: 1px solid #ddd; padding: 4px 6px; text-align: left; }
th { background: #f0f0f0; }
td.num { text-align: right; }
.muted { color: #777; }
</style>
</head>
<body>
<h1>Pricing curve report</h1>
<div class="muted">Generated {{.Generated}}</div>

<h2>Overview</h2>
{{if or .Report.Pricing .Report.Monotonicity}}<table>
{{if .Report.Pricing}}<tr><th>Units evaluated</th><td class="num">{{.Report.TotalUnits}}</td></tr>
<tr><th>Curve groups</th><td class="num">{{.Report.TotalGroups}}</td></tr>
<tr><th>Groups without curve</th><td class="num">{{.Report.CurvelessGroups}}</td></tr>
{{end}}{{if .Report.Monotonicity}}<tr><th>Floor monotonicity violations</th><td class="num">{{.Report.Violations}}</td></tr>
{{end}}</table>{{else}}<div class="muted">Pricing and monotonicity were not run.</div>{{end}}

{{if .Report.Pricing}}<h2>Units by state</h2>
<table>
<tr><th>State</th><th>Units</th></tr>
{{range .States}}<tr><td>{{.Name}}</td><td class="num">{{.Count}}</td></tr>
{{end}}</table>{{end}}

{{if .Report.TopOverpriced}}<h2>Most over-priced units</h2>
<table>
<tr><th>Group</th><th>Unit</th><th>Floor</th><th>Price</th><th>Expected</th><th>Deviation</th><th>Suggested</th></tr>
{{range .Report.TopOverpriced}}<tr><td>{{.Project.Label}} / {{.Subdivision.Label}} / {{.Typology.Label}}</td><td>{{.Unit.Label}}</td><td class="num">{{.Floor}}</td><td class="num">{{money .RealPrice}}</td><td class="num">{{money .ExpectedPrice}}</td><td class="num">{{pct .DeltaPct}}</td><td class="num">{{money .SuggestedPrice}}</td></tr>
{{end}}</table>{{end}}

{{if .Report.TopUnderpriced}}<h2>Most under-priced units</h2>
<table>
<tr><th>Group</th><th>Unit</th><th>Floor</th><th>Price</th><th>Expected</th><th>Deviation</th><th>Suggested</th></tr>
{{range .Report.TopUnderpriced}}<tr><td>{{.Project.Label}} / {{.Subdivision.Label}} / {{.Typology.Label}}</td><td>{{.Unit.Label}}</td><td class="num">{{.Floor}}</td><td class="num">{{money .RealPrice}}</td><td class="num">{{money .ExpectedPrice}}</td><td class="num">{{pct .DeltaPct}}</td><td class="num">{{money .SuggestedPrice}}</td></tr>
{{end}}</table>{{end}}

{{if .Elasticity}}<h2>Mean elasticity by project</h2>
<table>
<tr><th>Project</th><th>Mean elasticity</th></tr>
{{range .Elasticity}}<tr><td>{{.Name}}</td><td class="num">{{elast .Value}}</td></tr>
{{end}}</table>
<div class="muted">{{.Report.ElasticitySamples}} defined month-over-month observations.</div>{{end}}
</body>
</html>
`))

type stateRow struct {
	Name  string
	Count int
}

type projectValue struct {
	Name  string
	Value float64
}

type summaryData struct {
	Generated  string
	Report     *models.InsightReport
	States     []stateRow
	Elasticity []projectValue
}

// SummaryHTML renders a run summary as a standalone HTML page.
func SummaryHTML(r *models.InsightReport, generated time.Time) (string, error) {
	data := summaryData{
		Generated: generated.Format("2006-01-02 15:04"),
		Report:    r,
	}
	for _, s := range []models.State{models.StateAbove, models.StateBelow, models.StateInLine, models.StateNoCurve} {
		data.States = append(data.States, stateRow{Name: string(s), Count: r.CountByState[s]})
	}
	for name, v := range r.ElasticityByProj {
		data.Elasticity = append(data.Elasticity, projectValue{Name: name, Value: v})
	}
	sort.Slice(data.Elasticity, func(i, j int) bool { return data.Elasticity[i].Name < data.Elasticity[j].Name })

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("summary: render: %w", err)
	}
	return buf.String(), nil
}
