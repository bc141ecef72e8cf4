package grid

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/brookluers/survgrid/panel"
)

// withQuantileGroups returns a widened view of tbl in which the named
// continuous predictor is accompanied by indicator columns for its
// quantile groups.  The lowest group is the reference and gets no
// column.  The shared table is not modified; the view reuses its
// column storage.
func withQuantileGroups(tbl *panel.Table, name string, q int) (*panel.Table, []string, error) {

	x := tbl.Col(name)

	var obs []float64
	for _, v := range x {
		if !panel.IsMissing(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) < q {
		return nil, nil, fmt.Errorf("predictor '%s': %d observed values for %d quantile groups", name, len(obs), q)
	}
	sort.Float64s(obs)

	cuts := make([]float64, q-1)
	for k := 1; k < q; k++ {
		cuts[k-1] = stat.Quantile(float64(k)/float64(q), stat.Empirical, obs, nil)
	}
	for k := 1; k < len(cuts); k++ {
		if cuts[k] == cuts[k-1] {
			return nil, nil, fmt.Errorf("predictor '%s': tied quantile cut points", name)
		}
	}

	group := func(v float64) int {
		g := 0
		for _, c := range cuts {
			if v > c {
				g++
			}
		}
		return g
	}

	cols := make([][]float64, len(tbl.Names()))
	for j, na := range tbl.Names() {
		cols[j] = tbl.Col(na)
	}
	names := append([]string{}, tbl.Names()...)

	var terms []string
	for g := 1; g < q; g++ {
		z := make([]float64, len(x))
		for i, v := range x {
			if panel.IsMissing(v) {
				z[i] = panel.Missing()
			} else if group(v) == g {
				z[i] = 1
			}
		}
		na := fmt.Sprintf("%s_q%d", name, g+1)
		cols = append(cols, z)
		names = append(names, na)
		terms = append(terms, na)
	}

	view, err := panel.NewTable(cols, names)
	if err != nil {
		return nil, nil, err
	}

	return view, terms, nil
}
