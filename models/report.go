package models

import (
	"database/sql"
	"time"
)

// State is the classification of a unit against its group's price curve.
type State string

const (
	StateNoCurve State = "no curve (single floor)"
	StateAbove   State = "above curve (expensive)"
	StateBelow   State = "below curve (cheap)"
	StateInLine  State = "in line with curve"
)

// Evaluation is the per-unit output of the deviation classifier.
// DeltaPct is expressed in percent (7.5 means 7.5%).
type Evaluation struct {
	Project        KeyPart
	Subdivision    KeyPart
	Typology       KeyPart
	Unit           KeyPart
	Floor          int
	RealPrice      float64
	ExpectedPrice  float64
	Delta          float64
	DeltaPct       float64
	State          State
	SuggestedPrice float64
	Recommendation string
}

// Violation records a unit priced above its immediate lower-floor
// neighbour by more than the tolerance. DeltaPct is in percent.
type Violation struct {
	Project        KeyPart
	Subdivision    KeyPart
	Typology       KeyPart
	Unit           KeyPart
	Floor          int
	CurrentPrice   float64
	ReferenceFloor int
	ReferencePrice float64
	Delta          float64
	DeltaPct       float64
}

// Reservation is one row of the reservations export.
type Reservation struct {
	Project  KeyPart
	Typology KeyPart
	Date     time.Time
	Count    float64
}

// ElasticityRow is one (project, typology, month) row of the panel.
// The percent changes and elasticity are null for the first month of a
// series and wherever the ratio is undefined.
type ElasticityRow struct {
	Project      string
	Typology     string
	Month        time.Time
	MeanPrice    float64
	Reservations float64
	PctDeltaP    sql.NullFloat64
	PctDeltaQ    sql.NullFloat64
	Elasticity   sql.NullFloat64
}

// ForecastPoint is one day of a reservations forecast.
type ForecastPoint struct {
	Date  time.Time
	Yhat  float64
	Lower float64
	Upper float64
}

// InsightReport holds the run summary printed to the console and used as
// the email body.
type InsightReport struct {
	// Pricing and Monotonicity report whether those stages produced the
	// counts below; sections for stages that did not run are omitted.
	Pricing      bool
	Monotonicity bool

	TotalUnits        int
	TotalGroups       int
	CurvelessGroups   int
	CountByState      map[State]int
	Violations        int
	TopOverpriced     []Evaluation
	TopUnderpriced    []Evaluation
	ElasticityByProj  map[string]float64
	ElasticitySamples int
}
