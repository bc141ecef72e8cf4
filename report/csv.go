package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/brookluers/survgrid/grid"
)

// RegressionHeader is the column schema of the regression and
// sensitivity tables.
var RegressionHeader = []string{
	"predictor", "endpoint", "model", "term",
	"hr", "lcb", "ucb", "pvalue", "n", "events",
}

// PerformanceHeader is the column schema of the performance table.
var PerformanceHeader = []string{
	"predictor", "endpoint", "model",
	"concordance", "c_lcb", "c_ucb", "horizon", "auc", "n", "events",
}

// AssumptionHeader is the column schema of the assumption-test table.
var AssumptionHeader = []string{
	"predictor", "endpoint", "model", "term", "stat", "pvalue", "met",
}

func ftoa(x float64) string {
	return strconv.FormatFloat(x, 'g', 8, 64)
}

func writeRegRows(w io.Writer, rows []grid.Row) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(RegressionHeader); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			r.Predictor, r.Endpoint, r.Model, r.Term,
			ftoa(r.HR), ftoa(r.LCB), ftoa(r.UCB), ftoa(r.PValue),
			strconv.Itoa(r.N), strconv.Itoa(r.Events),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writePerfRows(w io.Writer, rows []PerfRow) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(PerformanceHeader); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			r.Predictor, r.Endpoint, r.Model,
			ftoa(r.C), ftoa(r.CLCB), ftoa(r.CUCB),
			ftoa(r.Horizon), ftoa(r.AUC),
			strconv.Itoa(r.N), strconv.Itoa(r.Events),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeAssumptionRows(w io.Writer, rows []AssumptionRow) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(AssumptionHeader); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			r.Predictor, r.Endpoint, r.Model, r.Term,
			ftoa(r.Stat), ftoa(r.PValue), strconv.FormatBool(r.Met),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSV writes each table of the report to the writers that are
// non-nil, with stable documented headers.
func (r *Report) WriteCSV(regression, performance, sensitivity, assumption io.Writer) error {

	if regression != nil {
		if err := writeRegRows(regression, r.Regression); err != nil {
			return fmt.Errorf("report: regression table: %w", err)
		}
	}
	if performance != nil {
		if err := writePerfRows(performance, r.Performance); err != nil {
			return fmt.Errorf("report: performance table: %w", err)
		}
	}
	if sensitivity != nil {
		if err := writeRegRows(sensitivity, r.Sensitivity); err != nil {
			return fmt.Errorf("report: sensitivity table: %w", err)
		}
	}
	if assumption != nil {
		if err := writeAssumptionRows(assumption, r.Assumption); err != nil {
			return fmt.Errorf("report: assumption table: %w", err)
		}
	}

	return nil
}
