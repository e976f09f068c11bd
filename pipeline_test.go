package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unit-pricing/config"
	"unit-pricing/models"
	"unit-pricing/report"
	"unit-pricing/storage"
	"unit-pricing/utils"
)

const unitsCSV = `nombre_proyecto,nombre_subdivision,nombre_tipologia,nombre_unidad,PISO,precio_lista,area_total,mes
Alto,T1,2D,101,1,200000,70,2024-01
Alto,T1,2D,201,2,215000,70,2024-01
Alto,T1,2D,301,3,220000,70,2024-02
Alto,T1,2D,401,4,230000,70,2024-02
Alto,T1,2D,501,5,,70,2024-02
Bosque,T1,1D,101,1,150000,45,2024-01
`

const reservationsCSV = `nombre_proyecto;nombre_tipologia;mes;separaciones
Alto;2D;2024-01;10
Alto;2D;2024-02;8
Bosque;1D;2024-01;3
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(data, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "Unidades.csv"), []byte(unitsCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "separaciones_mensual.csv"), []byte(reservationsCSV), 0644))

	return &config.Config{
		DataDir:               data,
		OutputDir:             filepath.Join(root, "output"),
		UnitsCSV:              "Unidades.csv",
		ReservationsCSV:       "separaciones_mensual.csv",
		PriceField:            "list",
		CurveTolerance:        0.03,
		MonotonicityTolerance: 0.01,
		CurrencySymbol:        "S/",
		MaxConcurrency:        2,
		MaxRetries:            1,
		ForecastHorizonDays:   90,
	}
}

func TestPipelineRunAll(t *testing.T) {
	cfg := testConfig(t)
	p, err := NewPipeline(cfg, utils.Nop())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Run(context.Background(), StageAll))

	for _, name := range []string{PricingReportFile, PricingReportCSVFile, ViolationsFile, ElasticityPanelFile} {
		_, err := os.Stat(cfg.OutputPath(name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(cfg.CleanUnitsPath())
	assert.NoError(t, err)

	assert.Len(t, p.evals, 5)
	assert.NotEmpty(t, p.violations)

	panel, err := storage.ReadElasticityPanel(cfg.OutputPath(ElasticityPanelFile))
	require.NoError(t, err)
	require.Len(t, panel, 3)
	// Alto 2D: price 207500 -> 225000, reservations 10 -> 8
	assert.Equal(t, "Alto", panel[0].Project)
	assert.False(t, panel[0].Elasticity.Valid)
	require.True(t, panel[1].Elasticity.Valid)
	assert.InDelta(t, -0.2/(17500.0/207500.0), panel[1].Elasticity.Float64, 1e-6)

	_, err = os.Stat(filepath.Join(cfg.PlotsDir(), report.DemandCurveFile("Alto", "2D")))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.PlotsDir(), report.BoxPlotFile))
	assert.NoError(t, err)
}

func TestPipelineStageRunsETLWhenCleanTableMissing(t *testing.T) {
	cfg := testConfig(t)
	p, err := NewPipeline(cfg, utils.Nop())
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background(), StageMonotonicity))

	_, err = os.Stat(cfg.CleanUnitsPath())
	assert.NoError(t, err)
	_, err = os.Stat(cfg.OutputPath(ViolationsFile))
	assert.NoError(t, err)
}

func TestPipelineReportNeedsPanel(t *testing.T) {
	p, err := NewPipeline(testConfig(t), utils.Nop())
	require.NoError(t, err)

	err = p.Run(context.Background(), StageReport)
	assert.ErrorContains(t, err, "elasticity stage")
}

func TestPipelineUnknownStage(t *testing.T) {
	p, err := NewPipeline(testConfig(t), utils.Nop())
	require.NoError(t, err)

	err = p.Run(context.Background(), "deploy")
	assert.True(t, errors.Is(err, ErrUnknownStage))
}

func TestPipelinePanelIgnoresPriceField(t *testing.T) {
	panels := make(map[string][]models.ElasticityRow)
	for _, field := range []string{"list", "per_area"} {
		cfg := testConfig(t)
		cfg.PriceField = field
		// The added Bosque unit has no area, so it has no per-area price.
		data := unitsCSV + "Bosque,T1,1D,201,2,160000,,2024-02\n"
		require.NoError(t, os.WriteFile(cfg.UnitsPath(), []byte(data), 0644))
		require.NoError(t, os.WriteFile(cfg.ReservationsPath(),
			[]byte(reservationsCSV+"Bosque;1D;2024-02;4\n"), 0644))

		p, err := NewPipeline(cfg, utils.Nop())
		require.NoError(t, err)
		require.NoError(t, p.Run(context.Background(), StageElasticity))
		panels[field] = p.panel
	}

	assert.Equal(t, panels["list"], panels["per_area"])
	require.Len(t, panels["list"], 4)
	assert.Equal(t, "Bosque", panels["list"][3].Project)
	assert.InDelta(t, 160000, panels["list"][3].MeanPrice, 1e-9)
}

type fakeResultStore struct {
	writeErr error
	stored   []models.Evaluation
	fetches  int
}

func (f *fakeResultStore) WriteEvaluations(evs []models.Evaluation) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.stored == nil {
		f.stored = evs
	}
	return nil
}

func (f *fakeResultStore) WriteViolations([]models.Violation) error { return nil }
func (f *fakeResultStore) WritePanel([]models.ElasticityRow) error  { return nil }
func (f *fakeResultStore) Close() error                             { return nil }
func (f *fakeResultStore) RunID() uuid.UUID                         { return uuid.Nil }

func (f *fakeResultStore) FetchEvaluations() ([]models.Evaluation, error) {
	f.fetches++
	return f.stored, nil
}

func TestPipelineInsightsUseStoredEvaluations(t *testing.T) {
	p, err := NewPipeline(testConfig(t), utils.Nop())
	require.NoError(t, err)
	store := &fakeResultStore{}
	p.db = store

	require.NoError(t, p.Run(context.Background(), StagePricing))

	assert.True(t, p.evalsStored)
	assert.Len(t, p.insightEvaluations(), len(p.evals))
	assert.Equal(t, 1, store.fetches)
}

func TestPipelineInsightsSkipFailedWrite(t *testing.T) {
	p, err := NewPipeline(testConfig(t), utils.Nop())
	require.NoError(t, err)
	store := &fakeResultStore{writeErr: errors.New("numeric field overflow")}
	p.db = store

	require.NoError(t, p.Run(context.Background(), StagePricing))

	assert.False(t, p.evalsStored)
	assert.Equal(t, p.evals, p.insightEvaluations())
	assert.Zero(t, store.fetches)
}

func TestPipelineInsightsSkipPartialStoredSet(t *testing.T) {
	p, err := NewPipeline(testConfig(t), utils.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background(), StagePricing))
	require.Len(t, p.evals, 5)

	store := &fakeResultStore{stored: p.evals[:2]}
	p.db = store
	p.evalsStored = true

	assert.Equal(t, p.evals, p.insightEvaluations())
	assert.Equal(t, 1, store.fetches)
}
