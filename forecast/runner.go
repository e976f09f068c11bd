package forecast

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"unit-pricing/models"
	"unit-pricing/services"
	"unit-pricing/storage"
	"unit-pricing/utils"
)

// Outcomes receives one call per forecast attempt.
type Outcomes interface {
	RecordForecast(ok bool)
}

// Runner forecasts every (project, typology) series and writes one
// workbook per series.
type Runner struct {
	client    *Client
	logger    *utils.Logger
	outputDir string
	periods   int
	workers   int
	rateMs    int
	outcomes  Outcomes
}

// NewRunner creates a Runner. Requests run on at most workers goroutines
// spaced by at least rateLimitMs.
func NewRunner(client *Client, logger *utils.Logger, outputDir string, periods, workers, rateLimitMs int, outcomes Outcomes) *Runner {
	return &Runner{
		client:    client,
		logger:    logger,
		outputDir: outputDir,
		periods:   periods,
		workers:   workers,
		rateMs:    rateLimitMs,
		outcomes:  outcomes,
	}
}

// Run forecasts each series. A failing series is logged and skipped; the
// returned paths list the workbooks that were written, in series order.
func (r *Runner) Run(ctx context.Context, reservations []models.Reservation) []string {
	keys, series := services.SplitSeries(reservations)
	r.logger.Info("[forecast] %d project/typology series", len(keys))

	pool := utils.NewWorkerPool(r.workers, r.rateMs)
	paths := utils.MapIndexed(pool, len(keys), func(i int) string {
		name := keys[i]
		r.logger.Info("[forecast] %s / %s ...", name.Project, name.Typology)

		path, err := r.runOne(ctx, name, series[name])
		if r.outcomes != nil {
			r.outcomes.RecordForecast(err == nil)
		}
		if err != nil {
			r.logger.Warn("[forecast] %s / %s skipped: %v", name.Project, name.Typology, err)
			return ""
		}
		r.logger.Info("[forecast] wrote %s", path)
		return path
	})

	written := paths[:0]
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	return written
}

func (r *Runner) runOne(ctx context.Context, name services.SeriesKey, series []models.Reservation) (string, error) {
	points, err := r.client.Forecast(ctx, name, series, r.periods)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.outputDir, FileName(name))
	if err := storage.WriteExcel(path, "forecast", storage.ForecastTable(points)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

var fileNameReplacer = strings.NewReplacer(" ", "_", "/", "-", "\\", "-")

// FileName is the workbook name for a series.
func FileName(name services.SeriesKey) string {
	return fileNameReplacer.Replace(fmt.Sprintf("forecast_%s_%s.xlsx", name.Project, name.Typology))
}
