package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"unit-pricing/models"
)

// PostgresWriter persists report tables to PostgreSQL. Every write is
// tagged with the run id so successive runs can be compared.
type PostgresWriter struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and registers a new analysis run.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: uuid.New()}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO pricing_runs (run_id) VALUES ($1)`, pw.runID.String()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: register run: %w", err)
	}

	return pw, nil
}

// RunID identifies the rows written by this writer.
func (pw *PostgresWriter) RunID() uuid.UUID { return pw.runID }

// schema is applied on every start. delta_pct is unbounded: an extrapolated
// expected price near zero yields very large percentages.
const schema = `
	CREATE TABLE IF NOT EXISTS pricing_runs (
		run_id     UUID        PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS pricing_evaluations (
		id              SERIAL PRIMARY KEY,
		run_id          UUID          NOT NULL REFERENCES pricing_runs(run_id),
		project         TEXT,
		subdivision     TEXT,
		typology        TEXT,
		unit            TEXT,
		floor           INTEGER       NOT NULL,
		real_price      NUMERIC(14,2) NOT NULL,
		expected_price  NUMERIC(14,2) NOT NULL,
		delta           NUMERIC(14,2) NOT NULL,
		delta_pct       DOUBLE PRECISION NOT NULL,
		state           TEXT          NOT NULL,
		suggested_price NUMERIC(14,2) NOT NULL,
		recommendation  TEXT          NOT NULL
	);

	CREATE TABLE IF NOT EXISTS floor_violations (
		id              SERIAL PRIMARY KEY,
		run_id          UUID          NOT NULL REFERENCES pricing_runs(run_id),
		project         TEXT,
		subdivision     TEXT,
		typology        TEXT,
		unit            TEXT,
		floor           INTEGER       NOT NULL,
		current_price   NUMERIC(14,2) NOT NULL,
		reference_floor INTEGER       NOT NULL,
		reference_price NUMERIC(14,2) NOT NULL,
		delta           NUMERIC(14,2) NOT NULL,
		delta_pct       DOUBLE PRECISION NOT NULL
	);

	CREATE TABLE IF NOT EXISTS elasticity_panel (
		id           SERIAL PRIMARY KEY,
		run_id       UUID          NOT NULL REFERENCES pricing_runs(run_id),
		project      TEXT          NOT NULL,
		typology     TEXT          NOT NULL,
		month        DATE          NOT NULL,
		mean_price   NUMERIC(14,2) NOT NULL,
		reservations NUMERIC(10,2) NOT NULL,
		pct_delta_p  DOUBLE PRECISION,
		pct_delta_q  DOUBLE PRECISION,
		elasticity   DOUBLE PRECISION
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_run   ON pricing_evaluations(run_id);
	CREATE INDEX IF NOT EXISTS idx_evaluations_state ON pricing_evaluations(state);
	CREATE INDEX IF NOT EXISTS idx_violations_run    ON floor_violations(run_id);
	CREATE INDEX IF NOT EXISTS idx_elasticity_run    ON elasticity_panel(run_id);

	ALTER TABLE pricing_evaluations ALTER COLUMN delta_pct TYPE DOUBLE PRECISION;
	ALTER TABLE floor_violations    ALTER COLUMN delta_pct TYPE DOUBLE PRECISION;
`

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(schema)
	return err
}

// WriteEvaluations batch-inserts the evaluations of this run.
func (pw *PostgresWriter) WriteEvaluations(evs []models.Evaluation) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{
			nullKey(e.Project), nullKey(e.Subdivision), nullKey(e.Typology), nullKey(e.Unit), e.Floor,
			e.RealPrice, e.ExpectedPrice, e.Delta, e.DeltaPct,
			string(e.State), e.SuggestedPrice, e.Recommendation,
		}
	}
	return pw.insert("pricing_evaluations", []string{
		"project", "subdivision", "typology", "unit", "floor",
		"real_price", "expected_price", "delta", "delta_pct",
		"state", "suggested_price", "recommendation",
	}, rows)
}

// WriteViolations batch-inserts the monotonicity violations of this run.
func (pw *PostgresWriter) WriteViolations(vs []models.Violation) error {
	rows := make([][]any, len(vs))
	for i, v := range vs {
		rows[i] = []any{
			nullKey(v.Project), nullKey(v.Subdivision), nullKey(v.Typology), nullKey(v.Unit), v.Floor,
			v.CurrentPrice, v.ReferenceFloor, v.ReferencePrice, v.Delta, v.DeltaPct,
		}
	}
	return pw.insert("floor_violations", []string{
		"project", "subdivision", "typology", "unit", "floor",
		"current_price", "reference_floor", "reference_price", "delta", "delta_pct",
	}, rows)
}

// WritePanel batch-inserts the elasticity panel of this run.
func (pw *PostgresWriter) WritePanel(panel []models.ElasticityRow) error {
	rows := make([][]any, len(panel))
	for i, r := range panel {
		rows[i] = []any{
			r.Project, r.Typology, r.Month, r.MeanPrice, r.Reservations,
			r.PctDeltaP, r.PctDeltaQ, r.Elasticity,
		}
	}
	return pw.insert("elasticity_panel", []string{
		"project", "typology", "month", "mean_price", "reservations",
		"pct_delta_p", "pct_delta_q", "elasticity",
	}, rows)
}

const batchSize = 50

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// insert writes all rows of one table in a single transaction, so a failed
// batch leaves none of the table's rows for this run behind.
func (pw *PostgresWriter) insert(table string, columns []string, rows [][]any) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: insert %s: begin: %w", table, err)
	}
	if err := insertBatches(tx, table, pw.runID.String(), columns, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: insert %s: commit: %w", table, err)
	}
	return nil
}

func insertBatches(ex execer, table, runID string, columns []string, rows [][]any) error {
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		query, args := buildInsert(table, runID, columns, rows[i:end])
		if _, err := ex.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: insert %s rows %d-%d: %w", table, i, end-1, err)
		}
	}
	return nil
}

// buildInsert renders a multi-row INSERT with run_id as the first column.
func buildInsert(table, runID string, columns []string, batch [][]any) (string, []any) {
	width := len(columns) + 1
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*width)

	for idx, row := range batch {
		base := idx * width
		ph := make([]string, width)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, runID)
		valueArgs = append(valueArgs, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (run_id, %s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchEvaluations reads back the evaluations stored by this run, in
// insertion order. Used by the insight summary.
func (pw *PostgresWriter) FetchEvaluations() ([]models.Evaluation, error) {
	rows, err := pw.db.Query(`
		SELECT project, subdivision, typology, unit, floor,
		       real_price, expected_price, delta, delta_pct,
		       state, suggested_price, recommendation
		FROM pricing_evaluations
		WHERE run_id = $1
		ORDER BY id
	`, pw.runID.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch evaluations: %w", err)
	}
	defer rows.Close()

	var evs []models.Evaluation
	for rows.Next() {
		var (
			e                                    models.Evaluation
			project, subdivision, typology, unit sql.NullString
			state                                string
		)
		if err := rows.Scan(
			&project, &subdivision, &typology, &unit, &e.Floor,
			&e.RealPrice, &e.ExpectedPrice, &e.Delta, &e.DeltaPct,
			&state, &e.SuggestedPrice, &e.Recommendation,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		e.Project = keyFromNull(project)
		e.Subdivision = keyFromNull(subdivision)
		e.Typology = keyFromNull(typology)
		e.Unit = keyFromNull(unit)
		e.State = models.State(state)
		evs = append(evs, e)
	}
	return evs, rows.Err()
}

func nullKey(k models.KeyPart) sql.NullString {
	return sql.NullString{String: k.Value, Valid: k.Known}
}

func keyFromNull(s sql.NullString) models.KeyPart {
	if !s.Valid {
		return models.Unknown()
	}
	return models.KeyPart{Value: s.String, Known: true}
}
