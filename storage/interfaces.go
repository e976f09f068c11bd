package storage

import (
	"github.com/google/uuid"

	"unit-pricing/models"
)

// ReportWriter is the interface any database backend for analysis results
// must satisfy.
type ReportWriter interface {
	WriteEvaluations(evs []models.Evaluation) error
	WriteViolations(vs []models.Violation) error
	WritePanel(panel []models.ElasticityRow) error
	Close() error
}

// ResultStore is a ReportWriter that can read back the evaluations it
// stored for the current run.
type ResultStore interface {
	ReportWriter
	RunID() uuid.UUID
	FetchEvaluations() ([]models.Evaluation, error)
}

// UnitStore persists the cleaned units between stages.
type UnitStore interface {
	WriteUnits(units []*models.Unit) error
	ReadUnits() ([]*models.Unit, error)
}

var (
	_ ResultStore = (*PostgresWriter)(nil)
	_ UnitStore   = (*ParquetStore)(nil)
)
