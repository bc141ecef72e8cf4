// Package evaluate computes discrimination and assumption diagnostics
// for fitted survival models.  Every computation here is independent
// and fault-isolated by the caller the same way grid cells are.
package evaluate

import (
	"fmt"
	"sort"

	"github.com/kshedden/statmodel/duration"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConcordanceResult holds the concordance index for one model's risk
// scores, with a normal-approximation confidence interval.
type ConcordanceResult struct {
	C   float64
	LCB float64
	UCB float64

	N      int
	Events int
}

// Concordance estimates the truncated concordance index of the risk
// scores: the probability that, of a random comparable pair, the
// subject with the shorter event time carries the higher score.
//
// The interval is a normal approximation from the event count; the
// lower bound is clipped at 0.5 (chance) and the upper bound at 1.
func Concordance(time, status, score []float64, tau, level float64) (cr *ConcordanceResult, err error) {

	defer func() {
		if r := recover(); r != nil {
			cr = nil
			err = fmt.Errorf("evaluate: concordance: %v", r)
		}
	}()

	if len(time) != len(status) || len(time) != len(score) {
		return nil, fmt.Errorf("evaluate: misaligned inputs")
	}

	var nevents int
	for _, s := range status {
		if s == 1 {
			nevents++
		}
	}
	if nevents == 0 {
		return nil, fmt.Errorf("evaluate: no events, concordance undefined")
	}

	// A comparable pair needs an event strictly below the
	// truncation horizon and strictly before another subject's
	// follow-up time.  Without one the pair sampler cannot
	// terminate, so the input is rejected up front.
	comparable := false
	var tmax float64
	for _, t := range time {
		if t > tmax {
			tmax = t
		}
	}
	for i := range time {
		if status[i] == 1 && time[i] < tau && time[i] < tmax {
			comparable = true
			break
		}
	}
	if !comparable {
		return nil, fmt.Errorf("evaluate: no comparable pairs below horizon %v, concordance undefined", tau)
	}

	c := duration.NewConcordance(time, status, score).Done().Concordance(tau)

	if level == 0 {
		level = 0.95
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + level/2)

	// Binomial-style standard error on the event count.
	se := z * sqrt(c*(1-c)/float64(nevents))

	lcb := c - se
	if lcb < 0.5 {
		lcb = 0.5
	}
	ucb := c + se
	if ucb > 1 {
		ucb = 1
	}

	return &ConcordanceResult{
		C:      c,
		LCB:    lcb,
		UCB:    ucb,
		N:      len(time),
		Events: nevents,
	}, nil
}

// DefaultTau returns a truncation horizon for the concordance: the
// 90th percentile of the observed follow-up times, which keeps the
// tail of the censoring distribution out of the comparison set.
func DefaultTau(time []float64) float64 {

	if len(time) == 0 {
		return 0
	}

	t := make([]float64, len(time))
	copy(t, time)
	sort.Float64s(t)

	i := int(0.9 * float64(len(t)))
	if i >= len(t) {
		i = len(t) - 1
	}

	return t[i]
}
