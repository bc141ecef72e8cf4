// Package grid fits proportional-hazards regressions over the
// cross-product of predictors, endpoints, and adjustment models, with
// per-cell failure isolation.
package grid

import "github.com/brookluers/survgrid/panel"

// Model is one adjustment specification: a named, ordered list of
// covariates included beyond the main predictor.
type Model struct {
	Name       string
	Covariates []string
}

// Spec identifies one grid cell: a predictor, an endpoint condition,
// and an adjustment model.
type Spec struct {
	Predictor string
	Endpoint  string
	Model     Model

	// Position in the enumeration order, used to make the output
	// order deterministic.
	cell int
}

// TimeVar returns the name of the duration column for the cell's
// endpoint.
func (s Spec) TimeVar() string {
	return s.Endpoint + panel.EventSuffixTime
}

// StatusVar returns the name of the event indicator column for the
// cell's endpoint.
func (s Spec) StatusVar() string {
	return s.Endpoint + panel.EventSuffixStatus
}

// Enumerate generates the full grid in predictor-outer, endpoint-middle,
// model-inner order.  Cells are independent; the order only fixes how
// result rows are reported.
func Enumerate(predictors, endpoints []string, models []Model) []Spec {

	var specs []Spec
	for _, p := range predictors {
		for _, e := range endpoints {
			for _, m := range models {
				specs = append(specs, Spec{
					Predictor: p,
					Endpoint:  e,
					Model:     m,
					cell:      len(specs),
				})
			}
		}
	}

	return specs
}
