package evaluate

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/brookluers/survgrid/grid"
	"github.com/brookluers/survgrid/panel"
)

func TestConcordancePerfect(t *testing.T) {

	n := 50
	time := make([]float64, n)
	status := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = float64(i + 1)
		status[i] = 1
		score[i] = -time[i]
	}

	cr, err := Concordance(time, status, score, 40, 0.95)
	if err != nil {
		t.Fatal(err)
	}

	// A score that reverses the event times is perfectly concordant.
	if cr.C != 1 {
		t.Errorf("C: got %v, expected 1", cr.C)
	}
	if cr.LCB < 0.5 || cr.UCB > 1 {
		t.Errorf("interval not clipped: [%v, %v]", cr.LCB, cr.UCB)
	}
	if cr.Events != n {
		t.Errorf("Events: got %d, expected %d", cr.Events, n)
	}
}

func TestConcordanceBounds(t *testing.T) {

	rng := rand.New(rand.NewSource(99))

	n := 200
	time := make([]float64, n)
	status := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = rng.ExpFloat64() * 5
		if rng.Float64() < 0.7 {
			status[i] = 1
		}
		score[i] = rng.NormFloat64()
	}

	cr, err := Concordance(time, status, score, DefaultTau(time), 0.95)
	if err != nil {
		t.Fatal(err)
	}

	if cr.C < 0 || cr.C > 1 {
		t.Errorf("concordance out of [0,1]: %v", cr.C)
	}
	if cr.LCB < 0.5 {
		t.Errorf("lower bound below 0.5: %v", cr.LCB)
	}
	if cr.UCB > 1 {
		t.Errorf("upper bound above 1: %v", cr.UCB)
	}
	if cr.LCB > cr.UCB {
		t.Errorf("inverted interval: [%v, %v]", cr.LCB, cr.UCB)
	}
}

func TestConcordanceNoEvents(t *testing.T) {

	time := []float64{1, 2, 3}
	status := []float64{0, 0, 0}
	score := []float64{1, 2, 3}

	if _, err := Concordance(time, status, score, 2, 0.95); err == nil {
		t.Fatal("expected an error with no events")
	}
}

// All events sit at or above the truncation horizon, so no comparable
// pair exists below it and the estimate must be refused rather than
// attempted.
func TestConcordanceNoEventsBelowHorizon(t *testing.T) {

	n := 100
	time := make([]float64, n)
	status := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = float64(i + 1)
		score[i] = -time[i]
	}
	// Events only in the top decile of follow-up.
	for i := 90; i < n; i++ {
		status[i] = 1
	}

	tau := DefaultTau(time)
	for i := 90; i < n; i++ {
		if time[i] < tau {
			t.Fatalf("fixture broken: event time %v below horizon %v", time[i], tau)
		}
	}

	if _, err := Concordance(time, status, score, tau, 0.95); err == nil {
		t.Fatal("expected an error with no events below the horizon")
	}
}

func TestDefaultTauEmpty(t *testing.T) {

	if tau := DefaultTau(nil); tau != 0 {
		t.Errorf("expected 0 for empty input, got %v", tau)
	}
}

func TestTimeAUCPerfect(t *testing.T) {

	n := 60
	time := make([]float64, n)
	status := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = float64(i + 1)
		status[i] = 1
		score[i] = -time[i]
	}

	auc, err := TimeAUC(time, status, score, 30)
	if err != nil {
		t.Fatal(err)
	}
	if auc != 1 {
		t.Errorf("AUC: got %v, expected 1", auc)
	}

	// Reversing the score reverses the ranking completely.
	for i := range score {
		score[i] = time[i]
	}
	auc, err = TimeAUC(time, status, score, 30)
	if err != nil {
		t.Fatal(err)
	}
	if auc != 0 {
		t.Errorf("AUC: got %v, expected 0", auc)
	}
}

func TestTimeAUCRange(t *testing.T) {

	rng := rand.New(rand.NewSource(7))

	n := 300
	time := make([]float64, n)
	status := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		time[i] = rng.ExpFloat64() * 4
		if rng.Float64() < 0.6 {
			status[i] = 1
		}
		score[i] = rng.NormFloat64()
	}

	auc, err := TimeAUC(time, status, score, 2)
	if err != nil {
		t.Fatal(err)
	}
	if auc < 0 || auc > 1 {
		t.Errorf("AUC out of [0,1]: %v", auc)
	}
}

func TestTimeAUCDegenerate(t *testing.T) {

	time := []float64{1, 2, 3}
	status := []float64{0, 0, 0}
	score := []float64{3, 2, 1}

	if _, err := TimeAUC(time, status, score, 2); err == nil {
		t.Fatal("expected an error with no cases by the horizon")
	}
	if _, err := TimeAUC(time, []float64{1, 1, 1}, score, 10); err == nil {
		t.Fatal("expected an error with nobody at risk beyond the horizon")
	}
}

// windowFitter returns a fixed pair of coefficient values, one per
// successive call, standing in for the early and late window fits.
type windowFitter struct {
	coeffs []float64
	call   int
}

func (f *windowFitter) Fit(timev, status string, covariates []string, tbl *panel.Table) (*grid.FitResult, error) {

	if f.call >= len(f.coeffs) {
		return nil, fmt.Errorf("unexpected extra fit")
	}
	b := f.coeffs[f.call]
	f.call++

	return &grid.FitResult{
		Names:  covariates,
		Coeff:  []float64{b},
		StdErr: []float64{0.1},
		NObs:   tbl.NumRow(),
	}, nil
}

func checkTable(t *testing.T) *panel.Table {

	n := 40
	dur := make([]float64, n)
	evt := make([]float64, n)
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		dur[i] = float64(i + 1)
		evt[i] = 1
		x[i] = float64(i % 5)
	}

	tbl, err := panel.NewTable([][]float64{dur, evt, x}, []string{"t", "d", "x"})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestCheckProportionalityMet(t *testing.T) {

	tbl := checkTable(t)

	f := &windowFitter{coeffs: []float64{0.5, 0.5}}
	tests, err := CheckProportionality(f, tbl, "t", "d", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}

	if len(tests) != 1 {
		t.Fatalf("got %d tests, expected 1", len(tests))
	}
	if !tests[0].Met || tests[0].PValue < 0.99 {
		t.Errorf("identical window coefficients must satisfy the assumption: %+v", tests[0])
	}
}

func TestCheckProportionalityViolated(t *testing.T) {

	tbl := checkTable(t)

	f := &windowFitter{coeffs: []float64{0.2, 1.4}}
	tests, err := CheckProportionality(f, tbl, "t", "d", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}

	if tests[0].Met || tests[0].PValue > 0.01 {
		t.Errorf("a time-varying effect must fail the check: %+v", tests[0])
	}
	if tests[0].Stat <= 0 {
		t.Errorf("test statistic must be positive: %v", tests[0].Stat)
	}
}

func TestSplitFollowup(t *testing.T) {

	tbl := checkTable(t)
	early, late := splitFollowup(tbl, "t", "d", 20)

	for i, v := range early.Col("t") {
		if v > 20 {
			t.Errorf("early window row %d not censored at the split: %v", i, v)
		}
	}
	if late.NumRow() != 20 {
		t.Errorf("late window: got %d rows, expected 20", late.NumRow())
	}
	for i, v := range late.Col("t") {
		if v <= 0 {
			t.Errorf("late window row %d has non-positive restarted time: %v", i, v)
		}
	}
	if math.Abs(late.Col("t")[0]-1) > 1e-12 {
		t.Errorf("late clock must restart at the split: %v", late.Col("t")[0])
	}
}
