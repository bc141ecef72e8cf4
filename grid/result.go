package grid

import "fmt"

// Row is one regression result: the hazard ratio and confidence bounds
// for one coefficient of interest in one grid cell.  Rows are
// immutable once appended.
type Row struct {
	Predictor string
	Endpoint  string
	Model     string

	// Term is the coefficient's label: the predictor name itself,
	// or one quantile-group indicator of it.
	Term string

	HR     float64
	LCB    float64
	UCB    float64
	PValue float64

	// Sample size and event count of the fitted cell.
	N      int
	Events int

	cell int
}

// FitFailure records a cell whose regression did not converge or was
// undefined.  It is recovered locally and never aborts the grid.
type FitFailure struct {
	Spec Spec
	Err  error
}

func (e *FitFailure) Error() string {
	return fmt.Sprintf("grid: fit failed for %s ~ %s (%s): %v",
		e.Spec.Endpoint, e.Spec.Predictor, e.Spec.Model.Name, e.Err)
}

func (e *FitFailure) Unwrap() error {
	return e.Err
}

// SchemaGapError records a cell skipped because a required column is
// absent from the analysis dataset.
type SchemaGapError struct {
	Spec   Spec
	Column string
}

func (e *SchemaGapError) Error() string {
	return fmt.Sprintf("grid: column '%s' absent, skipping %s ~ %s (%s)",
		e.Column, e.Spec.Endpoint, e.Spec.Predictor, e.Spec.Model.Name)
}

// Notice is the diagnostic record for a cell that produced no rows.
type Notice struct {
	Spec Spec
	Err  error
}

// Result collects the outcome of a grid run.  Attempted counts every
// dispatched cell, so gaps in the result rows are observable.
type Result struct {
	Rows      []Row
	Notices   []Notice
	Attempted int
	Succeeded int
}
