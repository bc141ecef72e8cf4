package panel

import "fmt"

// Reduce collapses a panel to one reference record per subject.  For
// each field, the most recent wave's non-missing value is selected; if
// every wave is missing the field stays missing.  Subjects are never
// dropped here; filtering on required fields is a separate step.
//
// Reducing a panel that already has one wave per subject returns the
// same values unchanged.
func Reduce(p *Panel, fields []string) (*Table, error) {

	for _, na := range fields {
		if !p.tbl.HasCol(na) {
			return nil, fmt.Errorf("panel: field '%s' not found", na)
		}
		if na == p.subjectVar || na == p.waveVar {
			return nil, fmt.Errorf("panel: field '%s' is a key column", na)
		}
	}

	ns := p.NumSubject()
	subj := p.tbl.Col(p.subjectVar)

	rsubj := make([]float64, ns)
	for g, ix := range p.groups() {
		rsubj[g] = subj[ix[0]]
	}

	cols := [][]float64{rsubj}
	names := []string{p.subjectVar}

	for _, na := range fields {
		x := p.tbl.Col(na)
		z := make([]float64, ns)
		for g, ix := range p.groups() {
			z[g] = Missing()
			// Later waves take precedence.
			for i := ix[1] - 1; i >= ix[0]; i-- {
				if !IsMissing(x[i]) {
					z[g] = x[i]
					break
				}
			}
		}
		cols = append(cols, z)
		names = append(names, na)
	}

	return NewTable(cols, names)
}

// DropIncomplete returns the rows of tbl where every one of the given
// required fields is non-missing.  This is the explicit filtering step
// that follows reduction.
func DropIncomplete(tbl *Table, required []string) (*Table, error) {

	for _, na := range required {
		if !tbl.HasCol(na) {
			return nil, fmt.Errorf("panel: required field '%s' not found", na)
		}
	}

	var keep []int
	for i := 0; i < tbl.NumRow(); i++ {
		ok := true
		for _, na := range required {
			if IsMissing(tbl.Col(na)[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}

	return tbl.Subset(keep), nil
}
