package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"unit-pricing/config"
	"unit-pricing/forecast"
	"unit-pricing/metrics"
	"unit-pricing/models"
	"unit-pricing/report"
	"unit-pricing/services"
	"unit-pricing/storage"
	"unit-pricing/utils"
)

// Stage names accepted by -stage.
const (
	StageAll          = "all"
	StageETL          = "etl"
	StagePricing      = "pricing"
	StageMonotonicity = "monotonicity"
	StageElasticity   = "elasticity"
	StageForecast     = "forecast"
	StageReport       = "report"
)

// Output file names.
const (
	PricingReportFile    = "pricing_curve_recommendations.xlsx"
	PricingReportCSVFile = "pricing_curve_recommendations.csv"
	ViolationsFile       = "prices_off_curve.xlsx"
	ElasticityPanelFile  = "elasticity_panel.xlsx"
	SummaryPDFFile       = "pricing_summary.pdf"
)

// ErrUnknownStage is returned for a -stage value that names no stage.
var ErrUnknownStage = errors.New("unknown stage")

// Pipeline wires the stages together. Results of earlier stages are kept
// in memory so later stages in the same run do not reload them.
type Pipeline struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Recorder

	reader   *storage.CSVReader
	cleaner  *services.Cleaner
	units    *storage.ParquetStore
	db       storage.ResultStore
	insights *services.InsightService
	retry    *utils.RetryConfig

	evals      []models.Evaluation
	violations []models.Violation
	panel      []models.ElasticityRow

	// Set once the matching stage has run in this invocation.
	priced      bool
	checked     bool
	evalsStored bool
}

// NewPipeline builds the collaborators of every stage. The database is
// only opened when result storage is enabled.
func NewPipeline(cfg *config.Config, logger *utils.Logger) (*Pipeline, error) {
	columns, err := config.LoadColumnMap(cfg.ColumnMapPath)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		reader:   storage.NewCSVReader(columns),
		cleaner:  services.NewCleaner(logger),
		units:    storage.NewParquetStore(cfg.CleanUnitsPath()),
		insights: services.NewInsightService(logger),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
	}

	if cfg.StorePostgres {
		db, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return nil, err
		}
		logger.Info("[postgres] Storing results under run %s", db.RunID())
		p.db = db
	}
	return p, nil
}

// Close releases the database connection, if any.
func (p *Pipeline) Close() {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.logger.Warn("[postgres] close: %v", err)
		}
		p.db = nil
	}
}

// Run executes one stage, or every stage in order for StageAll.
func (p *Pipeline) Run(ctx context.Context, stage string) error {
	switch stage {
	case StageAll:
		return p.runAll(ctx)
	case StageETL:
		_, err := p.timed(StageETL, p.etl)
		return err
	case StagePricing:
		return p.runTimed(StagePricing, func() error { return p.pricing(ctx, true) })
	case StageMonotonicity:
		return p.runTimed(StageMonotonicity, p.monotonicity)
	case StageElasticity:
		return p.runTimed(StageElasticity, p.elasticity)
	case StageForecast:
		return p.runTimed(StageForecast, func() error { return p.forecast(ctx) })
	case StageReport:
		return p.runTimed(StageReport, func() error { return p.report(ctx) })
	default:
		return fmt.Errorf("%w %q", ErrUnknownStage, stage)
	}
}

// runAll refreshes the clean units, runs the three independent analyses
// concurrently, then forecasts and reports.
func (p *Pipeline) runAll(ctx context.Context) error {
	if _, err := p.timed(StageETL, p.etl); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return p.runTimed(StagePricing, func() error { return p.pricing(ctx, false) }) })
	g.Go(func() error { return p.runTimed(StageMonotonicity, p.monotonicity) })
	g.Go(func() error { return p.runTimed(StageElasticity, p.elasticity) })
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.runTimed(StageForecast, func() error { return p.forecast(ctx) }); err != nil {
		return err
	}
	return p.runTimed(StageReport, func() error { return p.report(ctx) })
}

func (p *Pipeline) runTimed(stage string, fn func() error) error {
	done := p.logger.Timed(stage)
	err := fn()
	p.metrics.RecordStage(stage, done())
	return err
}

func (p *Pipeline) timed(stage string, fn func() ([]*models.Unit, error)) ([]*models.Unit, error) {
	var units []*models.Unit
	err := p.runTimed(stage, func() error {
		var err error
		units, err = fn()
		return err
	})
	return units, err
}

// etl reads the raw units export, cleans it and writes the intermediate
// parquet table.
func (p *Pipeline) etl() ([]*models.Unit, error) {
	path := p.cfg.UnitsPath()
	p.logger.Info("[etl] Loading units from %s", path)

	raw, err := p.reader.ReadFile(path, storage.UnitColumns...)
	if err != nil {
		return nil, err
	}
	units, err := p.cleaner.Clean(raw)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordDropped("units", len(raw)-len(units))
	if len(units) == 0 {
		return nil, fmt.Errorf("etl: all %d units were dropped during cleaning", len(raw))
	}

	if err := p.units.WriteUnits(units); err != nil {
		return nil, err
	}
	p.logger.Info("[etl] %d clean units written to %s", len(units), p.units.Path())
	return units, nil
}

// loadUnits reads the clean table, running etl first when it is missing.
func (p *Pipeline) loadUnits() ([]*models.Unit, error) {
	if !p.units.Exists() {
		p.logger.Info("[etl] %s not found, running etl first", p.units.Path())
		return p.etl()
	}
	units, err := p.units.ReadUnits()
	if err != nil {
		return nil, err
	}
	p.logger.Info("[etl] Loaded %d clean units from %s", len(units), p.units.Path())
	return units, nil
}

func (p *Pipeline) curveGroups() ([]services.Group, error) {
	units, err := p.loadUnits()
	if err != nil {
		return nil, err
	}
	return services.Partition(units, services.CurveGroupFields...)
}

// pricing evaluates every unit against its group curve. mail selects
// whether the report is emailed on its own.
func (p *Pipeline) pricing(ctx context.Context, mail bool) error {
	groups, err := p.curveGroups()
	if err != nil {
		return err
	}

	field := models.PriceField(p.cfg.PriceField)
	classifier := services.NewClassifier(p.cfg.CurveTolerance, p.cfg.CurrencySymbol)
	evals := services.NewEvaluator(p.logger, classifier, field, p.cfg.MaxConcurrency).Evaluate(groups)
	p.evals = evals
	p.priced = true
	p.metrics.RecordEvaluations(evals, len(groups))

	table := storage.EvaluationTable(evals)
	xlsx := p.cfg.OutputPath(PricingReportFile)
	if err := storage.WriteExcel(xlsx, "pricing", table); err != nil {
		return err
	}
	if err := storage.WriteCSV(p.cfg.OutputPath(PricingReportCSVFile), table); err != nil {
		return err
	}
	p.logger.Info("[pricing] Report saved to %s", xlsx)

	if p.db != nil {
		if err := p.db.WriteEvaluations(evals); err != nil {
			p.logger.Error("[postgres] Writing evaluations failed: %v", err)
		} else {
			p.evalsStored = true
			p.logger.Info("[postgres] %d evaluations stored", len(evals))
		}
	}

	if mail && p.cfg.SendEmail {
		body := "Attached is the latest per-floor price report with adjustment " +
			"recommendations (raise, lower or keep).\n"
		if _, err := p.mailer().Send(ctx, "Units priced off the curve", body, []string{xlsx}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) monotonicity() error {
	groups, err := p.curveGroups()
	if err != nil {
		return err
	}

	field := models.PriceField(p.cfg.PriceField)
	violations := services.NewMonotonicityChecker(p.logger, field, p.cfg.MonotonicityTolerance, p.cfg.MaxConcurrency).Check(groups)
	p.violations = violations
	p.checked = true
	p.metrics.RecordViolations(len(violations))

	path := p.cfg.OutputPath(ViolationsFile)
	if err := storage.WriteExcel(path, "violations", storage.ViolationTable(violations)); err != nil {
		return err
	}
	p.logger.Info("[monotonicity] Report saved to %s", path)

	if p.db != nil {
		if err := p.db.WriteViolations(violations); err != nil {
			p.logger.Error("[postgres] Writing violations failed: %v", err)
		}
	}
	return nil
}

// loadReservations reads the reservations export. date is the preferred
// date column; the other one is used when the file lacks it.
func (p *Pipeline) loadReservations(date, fallback string) ([]models.Reservation, error) {
	path := p.cfg.ReservationsPath()
	p.logger.Info("[reservations] Loading %s", path)

	raw, err := p.reader.ReadFile(path, storage.ReservationColumns...)
	if err != nil {
		return nil, err
	}
	col := date
	if len(raw) > 0 {
		if _, ok := raw[0].Fields[date]; !ok {
			if _, ok := raw[0].Fields[fallback]; !ok {
				return nil, fmt.Errorf("%s: %w: %s or %s", path, storage.ErrMissingColumns, date, fallback)
			}
			col = fallback
		}
	}

	res, err := p.cleaner.CleanReservations(raw, col)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordDropped("reservations", len(raw)-len(res))
	return res, nil
}

func (p *Pipeline) elasticity() error {
	units, err := p.loadUnits()
	if err != nil {
		return err
	}
	res, err := p.loadReservations(config.ColMonth, config.ColDate)
	if err != nil {
		return err
	}

	panel := services.BuildElasticityPanel(units, res)
	p.panel = panel
	p.logger.Info("[elasticity] Panel has %d project/typology/month rows", len(panel))

	path := p.cfg.OutputPath(ElasticityPanelFile)
	if err := storage.WriteExcel(path, "elasticity", storage.ElasticityTable(panel)); err != nil {
		return err
	}
	p.logger.Info("[elasticity] Panel saved to %s", path)

	if p.db != nil {
		if err := p.db.WritePanel(panel); err != nil {
			p.logger.Error("[postgres] Writing elasticity panel failed: %v", err)
		}
	}
	return nil
}

func (p *Pipeline) forecast(ctx context.Context) error {
	if p.cfg.ForecastURL == "" {
		p.logger.Warn("[forecast] FORECAST_URL not set, skipping")
		return nil
	}
	res, err := p.loadReservations(config.ColDate, config.ColMonth)
	if err != nil {
		return err
	}

	client := forecast.NewClient(p.cfg.ForecastURL, p.cfg.ForecastTimeout, p.retry)
	runner := forecast.NewRunner(client, p.logger, p.cfg.OutputDir,
		p.cfg.ForecastHorizonDays, p.cfg.MaxConcurrency, p.cfg.ForecastRateLimitMs, p.metrics)
	written := runner.Run(ctx, res)
	p.logger.Info("[forecast] %d forecast workbooks written", len(written))
	return nil
}

// report draws the charts, prints the insight summary and mails every
// output of the run as one message.
func (p *Pipeline) report(ctx context.Context) error {
	panelPath := p.cfg.OutputPath(ElasticityPanelFile)
	panel := p.panel
	if panel == nil {
		var err error
		if panel, err = storage.ReadElasticityPanel(panelPath); err != nil {
			return fmt.Errorf("report: run the elasticity stage first: %w", err)
		}
	}

	if _, err := report.NewChartBuilder(p.logger, p.cfg.PlotsDir()).Build(panel); err != nil {
		return err
	}

	summary := p.insights.Generate(p.insightEvaluations(), p.violations, panel)
	summary.Pricing = p.priced
	summary.Monotonicity = p.checked
	p.insights.Print(summary)

	var pdf string
	if p.cfg.RenderPDF {
		pdf = p.renderSummary(ctx, summary)
	}

	attachments := report.Attachments(p.cfg.OutputDir, p.cfg.PlotsDir(),
		p.cfg.OutputPath(PricingReportFile), panelPath, pdf)
	if !p.cfg.SendEmail {
		p.logger.Info("[report] Email disabled, %d attachments ready in %s", len(attachments), p.cfg.OutputDir)
		return nil
	}

	p.logger.Info("[report] Attaching %d files", len(attachments))
	body := "Attached is the econometric pricing report package.\n" + p.insights.Text(summary)
	_, err := p.mailer().Send(ctx, report.Subject, body, attachments)
	return err
}

// insightEvaluations prefers the rows stored for this run, so the summary
// reflects what was persisted. The in-memory evaluations are used when the
// write failed or the stored set is incomplete.
func (p *Pipeline) insightEvaluations() []models.Evaluation {
	if p.db == nil || !p.evalsStored || len(p.evals) == 0 {
		return p.evals
	}
	stored, err := p.db.FetchEvaluations()
	if err != nil {
		p.logger.Error("[postgres] Failed to fetch evaluations for insights: %v", err)
		return p.evals
	}
	if len(stored) != len(p.evals) {
		p.logger.Warn("[postgres] Run %s has %d stored evaluations, expected %d; using in-memory results",
			p.db.RunID(), len(stored), len(p.evals))
		return p.evals
	}
	return stored
}

// renderSummary prints the HTML summary to PDF. Failures are logged and
// the report goes out without it.
func (p *Pipeline) renderSummary(ctx context.Context, summary *models.InsightReport) string {
	html, err := report.SummaryHTML(summary, time.Now())
	if err != nil {
		p.logger.Warn("[pdf] %v", err)
		return ""
	}
	path := p.cfg.OutputPath(SummaryPDFFile)
	if err := report.NewPDFRenderer(p.cfg.ChromeBin, p.logger).Render(ctx, html, path); err != nil {
		p.logger.Warn("[pdf] Summary skipped: %v", err)
		return ""
	}
	return path
}

func (p *Pipeline) mailer() *report.Mailer {
	return report.NewMailer(report.MailConfig{
		Host:     p.cfg.SMTPHost,
		Port:     p.cfg.SMTPPort,
		User:     p.cfg.SMTPUser,
		Password: p.cfg.SMTPPassword,
		To:       p.cfg.MailTo,
	}, p.logger, p.retry)
}

// PushMetrics sends the run metrics when a Pushgateway is configured.
func (p *Pipeline) PushMetrics(ctx context.Context) {
	if p.cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.metrics.Push(pushCtx, p.cfg.PushgatewayURL); err != nil {
		p.logger.Warn("[metrics] %v", err)
		return
	}
	p.logger.Info("[metrics] Pushed to %s", p.cfg.PushgatewayURL)
}
