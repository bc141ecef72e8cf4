package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/statmodel/duration"
	"github.com/kshedden/statmodel/statmodel"
)

func sqrt(x float64) float64 {
	return math.Sqrt(x)
}

// censorSurv estimates the survival function of the censoring
// distribution, used for inverse-probability-of-censoring weights.
func censorSurv(time, status []float64) (st, sp []float64) {

	n := len(time)
	time1 := make([]float64, n)
	rstatus := make([]float64, n)
	copy(time1, time)
	for i := range status {
		rstatus[i] = 1 - status[i]
	}

	da := statmodel.NewDataset([][]float64{time1, rstatus},
		[]string{"Time", "Status"})
	sf, err := duration.NewSurvfuncRight(da, "Time", "Status", nil)
	if err != nil {
		// "Time" and "Status" are both in the dataset built just
		// above, so the constructor cannot fail.
		panic(err)
	}
	sf.Fit()

	st = sf.Time()
	sp = sf.SurvProb()

	var ncens float64
	for _, r := range rstatus {
		ncens += r
	}
	if ncens == 0 {
		// Nobody is censored, so P(C > t) = 1 everywhere.
		st = []float64{0, math.Inf(1)}
		sp = []float64{1, 1}
	}

	return st, sp
}

// gAt evaluates a right-continuous step function at t.
func gAt(st, sp []float64, t float64) float64 {

	j := sort.SearchFloat64s(st, t)
	if j == len(st) {
		j--
	}
	g := sp[j]
	if g <= 0 {
		g = sp[len(sp)-1]
	}
	if g <= 0 {
		g = 1e-12
	}
	return g
}

// TimeAUC computes the censoring-weighted cumulative/dynamic AUC at a
// follow-up horizon: the probability that a subject with an observed
// event by the horizon is scored higher than a subject still at risk
// beyond it.  Tied scores count half.
func TimeAUC(time, status, score []float64, horizon float64) (float64, error) {

	if len(time) != len(status) || len(time) != len(score) {
		return 0, fmt.Errorf("evaluate: misaligned inputs")
	}

	st, sp := censorSurv(time, status)

	var cases, controls []int
	for i := range time {
		switch {
		case time[i] <= horizon && status[i] == 1:
			cases = append(cases, i)
		case time[i] > horizon:
			controls = append(controls, i)
		}
	}

	if len(cases) == 0 {
		return 0, fmt.Errorf("evaluate: no events by horizon %v", horizon)
	}
	if len(controls) == 0 {
		return 0, fmt.Errorf("evaluate: nobody at risk beyond horizon %v", horizon)
	}

	var numer, denom float64
	for _, i := range cases {
		w := 1 / gAt(st, sp, time[i])
		for _, j := range controls {
			switch {
			case score[i] > score[j]:
				numer += w
			case score[i] == score[j]:
				numer += w / 2
			}
		}
		denom += w * float64(len(controls))
	}

	return numer / denom, nil
}
