package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"unit-pricing/models"
	"unit-pricing/services"
	"unit-pricing/utils"
)

// BoxPlotFile is the name of the elasticity distribution chart.
const BoxPlotFile = "elasticity_boxplot.jpg"

var fileReplacer = strings.NewReplacer(" ", "_", "/", "-", "\\", "-")

// ChartBuilder renders the econometric charts of the report stage as jpg
// files under one directory.
type ChartBuilder struct {
	logger *utils.Logger
	dir    string
}

func NewChartBuilder(logger *utils.Logger, dir string) *ChartBuilder {
	return &ChartBuilder{logger: logger, dir: dir}
}

type seriesKey struct {
	project, typology string
}

// Build draws one demand curve per (project, typology) and the elasticity
// box plot. It returns the paths written, demand curves first.
func (b *ChartBuilder) Build(panel []models.ElasticityRow) ([]string, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("charts: create dir: %w", err)
	}

	groups := make(map[seriesKey][]models.ElasticityRow)
	var keys []seriesKey
	for _, r := range panel {
		k := seriesKey{r.Project, r.Typology}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].project != keys[j].project {
			return keys[i].project < keys[j].project
		}
		return keys[i].typology < keys[j].typology
	})

	var paths []string
	for _, k := range keys {
		rows := groups[k]
		if !hasSpread(rows) {
			b.logger.Debug("[charts] %s / %s: too few distinct points for a demand curve", k.project, k.typology)
			continue
		}
		path := filepath.Join(b.dir, DemandCurveFile(k.project, k.typology))
		if err := demandCurve(k, rows, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	box, err := elasticityBoxPlot(panel, filepath.Join(b.dir, BoxPlotFile))
	if err != nil {
		return paths, err
	}
	if box != "" {
		paths = append(paths, box)
	}

	b.logger.Info("[charts] %d charts written to %s", len(paths), b.dir)
	return paths, nil
}

// DemandCurveFile is the chart name for a (project, typology) series.
func DemandCurveFile(project, typology string) string {
	return fileReplacer.Replace(fmt.Sprintf("demand_curve_%s_%s.jpg", project, typology))
}

// hasSpread reports whether rows carry at least two distinct prices and two
// distinct quantities.
func hasSpread(rows []models.ElasticityRow) bool {
	prices := make(map[float64]struct{})
	qty := make(map[float64]struct{})
	for _, r := range rows {
		prices[r.MeanPrice] = struct{}{}
		qty[r.Reservations] = struct{}{}
	}
	return len(prices) >= 2 && len(qty) >= 2
}

func demandCurve(k seriesKey, rows []models.ElasticityRow, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Demand vs price - %s / %s", k.project, k.typology)
	p.X.Label.Text = "Mean price"
	p.Y.Label.Text = "Reservations"

	points := make(plotter.XYs, len(rows))
	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	minX, maxX := rows[0].MeanPrice, rows[0].MeanPrice
	for i, r := range rows {
		points[i] = plotter.XY{X: r.MeanPrice, Y: r.Reservations}
		xs[i], ys[i] = r.MeanPrice, r.Reservations
		minX = min(minX, r.MeanPrice)
		maxX = max(maxX, r.MeanPrice)
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return fmt.Errorf("charts: scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(4)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	slope, intercept := services.FitLine(xs, ys)
	line := plotter.NewFunction(func(x float64) float64 { return intercept + slope*x })
	line.XMin, line.XMax = minX, maxX
	line.Width = vg.Points(2)
	line.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}

	p.Add(plotter.NewGrid(), scatter, line)

	if err := p.Save(7*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("charts: save %s: %w", path, err)
	}
	return nil
}

// elasticityBoxPlot draws one box per project over the defined
// elasticities. It writes nothing and returns "" when no project has one.
func elasticityBoxPlot(panel []models.ElasticityRow, path string) (string, error) {
	byProject := make(map[string]plotter.Values)
	for _, r := range panel {
		if r.Elasticity.Valid {
			byProject[r.Project] = append(byProject[r.Project], r.Elasticity.Float64)
		}
	}
	if len(byProject) == 0 {
		return "", nil
	}

	projects := make([]string, 0, len(byProject))
	for name := range byProject {
		projects = append(projects, name)
	}
	sort.Strings(projects)

	p := plot.New()
	p.Title.Text = "Price elasticity of demand by project"
	p.X.Label.Text = "Project"
	p.Y.Label.Text = "Elasticity"

	p.Add(plotter.NewGrid())
	w := vg.Points(30)
	for i, name := range projects {
		box, err := plotter.NewBoxPlot(w, float64(i), byProject[name])
		if err != nil {
			return "", fmt.Errorf("charts: box plot %s: %w", name, err)
		}
		p.Add(box)
	}
	p.NominalX(projects...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	width := vg.Length(max(10, len(projects))) * vg.Inch
	if err := p.Save(width, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("charts: save %s: %w", path, err)
	}
	return path, nil
}
