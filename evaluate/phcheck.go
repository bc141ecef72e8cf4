package evaluate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/brookluers/survgrid/grid"
	"github.com/brookluers/survgrid/panel"
)

// PHTest is the proportionality diagnostic for one coefficient: a test
// of whether its effect is constant over follow-up time.  The
// assumption is considered met when PValue > 0.05.
type PHTest struct {
	Term   string
	Stat   float64
	PValue float64
	Met    bool
}

// CheckProportionality tests the proportional-hazards assumption for
// each covariate by refitting the model on the early and late halves
// of follow-up, split at the median event time, and comparing the two
// coefficient estimates on their joint standard error.  Only the
// fitting collaborator's public contract is used.
func CheckProportionality(f grid.Fitter, tbl *panel.Table, timeVar, statusVar string, covariates []string) ([]PHTest, error) {

	time := tbl.Col(timeVar)
	status := tbl.Col(statusVar)
	if time == nil || status == nil {
		return nil, fmt.Errorf("evaluate: columns '%s'/'%s' not found", timeVar, statusVar)
	}

	var et []float64
	for i := range time {
		if status[i] == 1 {
			et = append(et, time[i])
		}
	}
	if len(et) < 4 {
		return nil, fmt.Errorf("evaluate: %d events is too few to split follow-up", len(et))
	}
	sort.Float64s(et)
	split := et[len(et)/2]

	early, late := splitFollowup(tbl, timeVar, statusVar, split)

	fe, err := f.Fit(timeVar, statusVar, covariates, early)
	if err != nil {
		return nil, fmt.Errorf("evaluate: early-window fit: %w", err)
	}
	fl, err := f.Fit(timeVar, statusVar, covariates, late)
	if err != nil {
		return nil, fmt.Errorf("evaluate: late-window fit: %w", err)
	}

	pos := make(map[string]int)
	for j, na := range fl.Names {
		pos[na] = j
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1}

	var out []PHTest
	for j, na := range fe.Names {
		k, ok := pos[na]
		if !ok {
			return nil, fmt.Errorf("evaluate: term '%s' missing from late-window fit", na)
		}
		z := (fe.Coeff[j] - fl.Coeff[k]) / sqrt(fe.StdErr[j]*fe.StdErr[j]+fl.StdErr[k]*fl.StdErr[k])
		p := 2 * norm.CDF(-math.Abs(z))
		out = append(out, PHTest{
			Term:   na,
			Stat:   z * z,
			PValue: p,
			Met:    p > 0.05,
		})
	}

	return out, nil
}

// splitFollowup builds the early and late follow-up views of the
// dataset.  In the early view, follow-up is administratively censored
// at the split time.  The late view keeps the subjects still at risk
// past the split, with the clock restarted there.
func splitFollowup(tbl *panel.Table, timeVar, statusVar string, split float64) (*panel.Table, *panel.Table) {

	time := tbl.Col(timeVar)

	early := tbl.Clone()
	et := early.Col(timeVar)
	es := early.Col(statusVar)
	for i := range et {
		if time[i] > split {
			et[i] = split
			es[i] = 0
		}
	}

	var keep []int
	for i := range time {
		if time[i] > split {
			keep = append(keep, i)
		}
	}
	late := tbl.Subset(keep)
	lt := late.Col(timeVar)
	for i := range lt {
		lt[i] -= split
	}

	return early, late
}
