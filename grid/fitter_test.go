package grid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/brookluers/survgrid/panel"
)

// Simulated survival data where x raises the hazard and z is noise.
func fitterTable(t *testing.T, n int) *panel.Table {

	rng := rand.New(rand.NewSource(4523))

	x := make([]float64, n)
	z := make([]float64, n)
	dur := make([]float64, n)
	evt := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		z[i] = rng.NormFloat64()
		et := rng.ExpFloat64() * math.Exp(-x[i])
		ct := rng.ExpFloat64() * 2
		if et <= ct {
			dur[i] = et
			evt[i] = 1
		} else {
			dur[i] = ct
		}
	}

	tbl, err := panel.NewTable(
		[][]float64{dur, evt, x, z},
		[]string{"diab" + panel.EventSuffixTime, "diab" + panel.EventSuffixStatus, "x", "z"})
	if err != nil {
		t.Fatal(err)
	}

	return tbl
}

func TestPHFitter(t *testing.T) {

	tbl := fitterTable(t, 400)

	f := &PHFitter{}
	fr, err := f.Fit("diab"+panel.EventSuffixTime, "diab"+panel.EventSuffixStatus, []string{"x", "z"}, tbl)
	if err != nil {
		t.Fatal(err)
	}

	if len(fr.Coeff) != 2 || len(fr.StdErr) != 2 {
		t.Fatalf("expected two coefficients, got %d", len(fr.Coeff))
	}

	// The hazard increases in x, so its coefficient is positive and
	// clearly separated from zero at this sample size.
	if fr.Coeff[0] < 0.5 {
		t.Errorf("x coefficient: got %v, expected near 1", fr.Coeff[0])
	}
	if fr.StdErr[0] <= 0 {
		t.Errorf("degenerate standard error: %v", fr.StdErr[0])
	}

	if fr.NObs != 400 {
		t.Errorf("NObs: got %d, expected 400", fr.NObs)
	}
	var ne int
	for _, s := range tbl.Col("diab" + panel.EventSuffixStatus) {
		if s == 1 {
			ne++
		}
	}
	if fr.NEvents != ne {
		t.Errorf("NEvents: got %d, expected %d", fr.NEvents, ne)
	}
	if len(fr.Scores) != fr.NObs || len(fr.Time) != fr.NObs {
		t.Errorf("scores and times must align with the retained rows")
	}
}

func TestPHFitterMissingRows(t *testing.T) {

	tbl := fitterTable(t, 200)
	x := tbl.Col("x")
	x[0] = panel.Missing()
	x[5] = panel.Missing()

	f := &PHFitter{}
	fr, err := f.Fit("diab"+panel.EventSuffixTime, "diab"+panel.EventSuffixStatus, []string{"x"}, tbl)
	if err != nil {
		t.Fatal(err)
	}

	if fr.NObs != 198 {
		t.Errorf("incomplete rows must be dropped: NObs=%d", fr.NObs)
	}
}

func TestPHFitterNoEvents(t *testing.T) {

	tbl := fitterTable(t, 100)
	evt := tbl.Col("diab" + panel.EventSuffixStatus)
	for i := range evt {
		evt[i] = 0
	}

	f := &PHFitter{}
	_, err := f.Fit("diab"+panel.EventSuffixTime, "diab"+panel.EventSuffixStatus, []string{"x"}, tbl)
	if err == nil {
		t.Fatal("a zero-event endpoint must fail to fit")
	}
}

func TestPHFitterMissingColumn(t *testing.T) {

	tbl := fitterTable(t, 50)

	f := &PHFitter{}
	_, err := f.Fit("diab"+panel.EventSuffixTime, "diab"+panel.EventSuffixStatus, []string{"nope"}, tbl)
	if err == nil {
		t.Fatal("expected an error for an unknown covariate")
	}
}
