package grid

import (
	"fmt"
	"log"
	"math"

	"github.com/kshedden/statmodel/duration"
	"github.com/kshedden/statmodel/statmodel"

	"github.com/brookluers/survgrid/panel"
)

// FitResult is the regression-fitting collaborator's output: the
// coefficient estimates, their sampling covariance, and the risk
// scores for the rows that entered the fit.  Nothing beyond this
// contract is inspected.
type FitResult struct {
	Names  []string
	Coeff  []float64
	StdErr []float64

	// Vectorized covariance matrix of the coefficients.
	VCov []float64

	NObs    int
	NEvents int

	// Fitted linear predictor, one value per retained row, usable
	// as a risk score.
	Scores []float64

	// Time and Status are the duration and event values of the
	// retained rows, aligned with Scores.
	Time   []float64
	Status []float64
}

// Fitter fits a proportional-hazards regression of (time, status) on
// the given covariates.  Implementations must be safe for concurrent
// use; the table is read-only.
type Fitter interface {
	Fit(time, status string, covariates []string, tbl *panel.Table) (*FitResult, error)
}

// PHFitter is the default Fitter, backed by the statmodel proportional
// hazards implementation with Breslow tie handling.
type PHFitter struct {

	// Optional logger receiving fit diagnostics.
	Log *log.Logger
}

// Fit implements Fitter.  Rows with any missing value among the used
// columns are dropped (the upstream dataset is complete after
// imputation, but derived columns may carry gaps).  Panics raised by
// the numerical routines on degenerate input are converted to errors.
func (f *PHFitter) Fit(time, status string, covariates []string, tbl *panel.Table) (fr *FitResult, err error) {

	defer func() {
		if r := recover(); r != nil {
			fr = nil
			err = fmt.Errorf("proportional hazards fit: %v", r)
		}
	}()

	names := append([]string{time, status}, covariates...)

	raw := make([][]float64, len(names))
	for j, na := range names {
		c := tbl.Col(na)
		if c == nil {
			return nil, fmt.Errorf("column '%s' not found", na)
		}
		raw[j] = c
	}

	// Complete-case restriction over the used columns only.
	nobs := tbl.NumRow()
	var keep []int
	for i := 0; i < nobs; i++ {
		ok := true
		for _, c := range raw {
			if panel.IsMissing(c[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}

	cols := make([][]float64, len(raw))
	for j, c := range raw {
		z := make([]float64, len(keep))
		for i, r := range keep {
			z[i] = c[r]
		}
		cols[j] = z
	}

	var nevents int
	for _, s := range cols[1] {
		if s == 1 {
			nevents++
		}
	}
	if nevents == 0 {
		return nil, fmt.Errorf("endpoint '%s' has no events among %d cases", status, len(keep))
	}
	if len(keep) <= len(covariates) {
		return nil, fmt.Errorf("%d cases cannot identify %d coefficients", len(keep), len(covariates))
	}

	data := statmodel.NewDataset(cols, names)

	model, err := duration.NewPHReg(data, time, status, covariates, &duration.PHRegConfig{Log: f.Log})
	if err != nil {
		return nil, err
	}

	rslt, err := model.Fit()
	if err != nil {
		return nil, err
	}
	if rslt.StdErr() == nil {
		return nil, fmt.Errorf("fit produced no covariance estimate")
	}

	coeff := make([]float64, len(rslt.Params()))
	copy(coeff, rslt.Params())
	stderr := make([]float64, len(rslt.StdErr()))
	copy(stderr, rslt.StdErr())
	for _, se := range stderr {
		if se == 0 || math.IsNaN(se) || math.IsInf(se, 0) {
			return nil, fmt.Errorf("singular design: degenerate standard error")
		}
	}

	return &FitResult{
		Names:   rslt.Names(),
		Coeff:   coeff,
		StdErr:  stderr,
		VCov:    rslt.VCov(),
		NObs:    len(keep),
		NEvents: nevents,
		Scores:  rslt.FittedValues(nil),
		Time:    cols[0],
		Status:  cols[1],
	}, nil
}
