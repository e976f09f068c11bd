package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"unit-pricing/models"
	"unit-pricing/utils"
)

const topN = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises one run. Any of the inputs may be empty; a nil slice
// marks a stage that did not run.
func (s *InsightService) Generate(evals []models.Evaluation, violations []models.Violation, panel []models.ElasticityRow) *models.InsightReport {
	report := &models.InsightReport{
		Pricing:          evals != nil,
		Monotonicity:     violations != nil,
		CountByState:     make(map[models.State]int),
		ElasticityByProj: make(map[string]float64),
		Violations:       len(violations),
	}

	report.TotalUnits = len(evals)

	groups := make(map[string]bool)
	var above, below []models.Evaluation
	for _, e := range evals {
		report.CountByState[e.State]++
		key := GroupKey{e.Project, e.Subdivision, e.Typology}.id()
		if _, seen := groups[key]; !seen {
			groups[key] = e.State == models.StateNoCurve
		}
		switch e.State {
		case models.StateAbove:
			above = append(above, e)
		case models.StateBelow:
			below = append(below, e)
		}
	}
	report.TotalGroups = len(groups)
	for _, curveless := range groups {
		if curveless {
			report.CurvelessGroups++
		}
	}

	sort.SliceStable(above, func(i, j int) bool { return above[i].DeltaPct > above[j].DeltaPct })
	sort.SliceStable(below, func(i, j int) bool { return below[i].DeltaPct < below[j].DeltaPct })
	report.TopOverpriced = firstN(above, topN)
	report.TopUnderpriced = firstN(below, topN)

	// Mean elasticity per project over defined rows only.
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range panel {
		if !r.Elasticity.Valid {
			continue
		}
		sums[r.Project] += r.Elasticity.Float64
		counts[r.Project]++
		report.ElasticitySamples++
	}
	for p, n := range counts {
		report.ElasticityByProj[p] = round2(sums[p] / float64(n))
	}

	return report
}

// Print writes the coloured console summary to stdout.
func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 UNIT PRICING INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n", sep)
	fmt.Print(s.Text(r))
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

// Text renders the summary as plain text, used as the email body.
func (s *InsightService) Text(r *models.InsightReport) string {
	var b strings.Builder
	s.write(&b, r)
	return b.String()
}

func (s *InsightService) write(w io.Writer, r *models.InsightReport) {
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n  Overview\n  %s\n", thin)
	if r.Pricing {
		fmt.Fprintf(w, "  Units evaluated        : %d\n", r.TotalUnits)
		fmt.Fprintf(w, "  Groups                 : %d\n", r.TotalGroups)
		fmt.Fprintf(w, "  Groups without curve   : %d\n", r.CurvelessGroups)
	}
	if r.Monotonicity {
		fmt.Fprintf(w, "  Floor-order violations : %d\n", r.Violations)
	}
	if !r.Pricing && !r.Monotonicity {
		fmt.Fprintf(w, "  Pricing and monotonicity were not run\n")
	}
	fmt.Fprintln(w)

	if r.Pricing {
		fmt.Fprintf(w, "  Units by state\n  %s\n", thin)
		for _, st := range []models.State{models.StateAbove, models.StateBelow, models.StateInLine, models.StateNoCurve} {
			n := r.CountByState[st]
			fmt.Fprintf(w, "  %-26s %s (%d)\n", st, strings.Repeat("█", scaleBar(n, r.TotalUnits)), n)
		}
		fmt.Fprintln(w)

		writeTop(w, "Most over-priced units", r.TopOverpriced, thin)
		writeTop(w, "Most under-priced units", r.TopUnderpriced, thin)
	}

	fmt.Fprintf(w, "  Mean elasticity by project\n  %s\n", thin)
	if len(r.ElasticityByProj) == 0 {
		fmt.Fprintf(w, "  No elasticity data\n")
	} else {
		projects := make([]string, 0, len(r.ElasticityByProj))
		for p := range r.ElasticityByProj {
			projects = append(projects, p)
		}
		sort.Strings(projects)
		for _, p := range projects {
			fmt.Fprintf(w, "  %-30s %8.2f\n", truncate(p, 28), r.ElasticityByProj[p])
		}
	}
	fmt.Fprintln(w)
}

func writeTop(w io.Writer, title string, evs []models.Evaluation, thin string) {
	fmt.Fprintf(w, "  %s\n  %s\n", title, thin)
	if len(evs) == 0 {
		fmt.Fprintf(w, "  None\n\n")
		return
	}
	for i, e := range evs {
		label := fmt.Sprintf("%s / %s / %s", e.Project.Label(), e.Unit.Label(), e.Typology.Label())
		fmt.Fprintf(w, "  %d. %-38s floor %3d  %+6.1f%%\n", i+1, truncate(label, 38), e.Floor, e.DeltaPct)
	}
	fmt.Fprintln(w)
}

func firstN(evs []models.Evaluation, n int) []models.Evaluation {
	if len(evs) > n {
		return evs[:n]
	}
	return evs
}

// scaleBar maps n out of total onto a bar of at most 30 cells.
func scaleBar(n, total int) int {
	if total == 0 || n == 0 {
		return 0
	}
	w := n * 30 / total
	if w == 0 {
		w = 1
	}
	return w
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
