package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"unit-pricing/models"
)

const jobName = "unit_pricing"

// Recorder collects run metrics on a private registry. A batch job has no
// scrape endpoint, so the registry is pushed to a Pushgateway at the end.
type Recorder struct {
	registry *prometheus.Registry

	unitsByState  *prometheus.GaugeVec
	groups        prometheus.Gauge
	violations    prometheus.Gauge
	droppedRows   *prometheus.CounterVec
	forecastCalls *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		unitsByState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "unit_pricing_units",
				Help: "Units evaluated in the last run by curve state",
			},
			[]string{"state"},
		),
		groups: f.NewGauge(prometheus.GaugeOpts{
			Name: "unit_pricing_groups",
			Help: "Curve groups evaluated in the last run",
		}),
		violations: f.NewGauge(prometheus.GaugeOpts{
			Name: "unit_pricing_floor_violations",
			Help: "Monotonicity violations found in the last run",
		}),
		droppedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unit_pricing_dropped_rows_total",
				Help: "Input rows dropped during cleaning",
			},
			[]string{"dataset"},
		),
		forecastCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unit_pricing_forecast_requests_total",
				Help: "Forecast service requests by outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unit_pricing_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordEvaluations sets the per-state unit gauges and the group gauge.
func (r *Recorder) RecordEvaluations(evs []models.Evaluation, groups int) {
	counts := map[models.State]int{
		models.StateNoCurve: 0,
		models.StateAbove:   0,
		models.StateBelow:   0,
		models.StateInLine:  0,
	}
	for _, e := range evs {
		counts[e.State]++
	}
	for state, n := range counts {
		r.unitsByState.WithLabelValues(string(state)).Set(float64(n))
	}
	r.groups.Set(float64(groups))
}

func (r *Recorder) RecordViolations(n int) {
	r.violations.Set(float64(n))
}

func (r *Recorder) RecordDropped(dataset string, n int) {
	r.droppedRows.WithLabelValues(dataset).Add(float64(n))
}

// RecordForecast counts one forecast request; ok selects the outcome label.
func (r *Recorder) RecordForecast(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.forecastCalls.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Push sends every collected metric to the Pushgateway at url, replacing
// the previous push for this job.
func (r *Recorder) Push(ctx context.Context, url string) error {
	if err := push.New(url, jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
