// Package report merges grid and evaluator output into tidy,
// per-purpose tables and derives summary views.  It performs no
// fitting.
package report

import (
	"sort"

	"github.com/brookluers/survgrid/grid"
	"github.com/brookluers/survgrid/panel"
)

// PerfRow is one performance measurement: a predictor-specific model's
// discrimination for one endpoint.
type PerfRow struct {
	Predictor string
	Endpoint  string
	Model     string

	C    float64
	CLCB float64
	CUCB float64

	// Horizon and AUC are set when a time-dependent AUC was
	// computed; Horizon is 0 for the concordance-only rows.
	Horizon float64
	AUC     float64

	N      int
	Events int
}

// AssumptionRow is one proportional-hazards check result.
type AssumptionRow struct {
	Predictor string
	Endpoint  string
	Model     string
	Term      string

	Stat   float64
	PValue float64
	Met    bool
}

// Counts makes silent gaps observable: every table reports how many
// cells were attempted and how many produced rows.
type Counts struct {
	Attempted int
	Succeeded int
}

// Report is the aggregate of one analysis run.
type Report struct {
	Regression  []grid.Row
	Performance []PerfRow
	Sensitivity []grid.Row
	Assumption  []AssumptionRow

	RegressionCounts  Counts
	PerformanceCounts Counts
	SensitivityCounts Counts
	AssumptionCounts  Counts

	// Diagnostic notices from every phase, in cell order.
	Notices []grid.Notice

	// Excluded lists subjects dropped for having no panel history.
	Excluded []panel.MissingHistoryError
}

// BestPredictor names the predictor whose model discriminates best for
// one endpoint.
type BestPredictor struct {
	Endpoint  string
	Predictor string
	C         float64
}

// BestPredictors returns, per endpoint, the predictor with the highest
// concordance.  Endpoints with no performance rows are absent.
func (r *Report) BestPredictors() []BestPredictor {

	best := make(map[string]PerfRow)
	for _, pr := range r.Performance {
		if pr.Horizon != 0 {
			continue
		}
		b, ok := best[pr.Endpoint]
		if !ok || pr.C > b.C {
			best[pr.Endpoint] = pr
		}
	}

	var out []BestPredictor
	for e, pr := range best {
		out = append(out, BestPredictor{Endpoint: e, Predictor: pr.Predictor, C: pr.C})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Endpoint < out[j].Endpoint
	})

	return out
}

// Pair is a (predictor, endpoint) combination.
type Pair struct {
	Predictor string
	Endpoint  string
}

// SignificantPairs returns the distinct predictor/endpoint pairs with
// any regression row below the p-value threshold, in row order.
func (r *Report) SignificantPairs(alpha float64) []Pair {

	seen := make(map[Pair]bool)
	var out []Pair
	for _, row := range r.Regression {
		if row.PValue >= alpha {
			continue
		}
		pr := Pair{Predictor: row.Predictor, Endpoint: row.Endpoint}
		if !seen[pr] {
			seen[pr] = true
			out = append(out, pr)
		}
	}

	return out
}
