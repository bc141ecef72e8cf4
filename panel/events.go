package panel

import "fmt"

// EventSuffixTime and EventSuffixStatus name the derived columns for a
// condition: "<condition>_time" holds the duration and
// "<condition>_event" the 0/1 event indicator.
const (
	EventSuffixTime   = "_time"
	EventSuffixStatus = "_event"
)

// basisNear returns the row nearest k within [lo, hi) where both year
// and month are observed, preferring k itself and then earlier rows,
// or -1 when no row of the block has a complete time basis.
func basisNear(year, month []float64, lo, hi, k int) int {
	for d := 0; k-d >= lo || k+d < hi; d++ {
		if j := k - d; j >= lo && !IsMissing(year[j]) && !IsMissing(month[j]) {
			return j
		}
		if j := k + d; d > 0 && j < hi && !IsMissing(year[j]) && !IsMissing(month[j]) {
			return j
		}
	}
	return -1
}

// elapsed returns the follow-up time between two panel rows on the
// year/month basis.  Day-level precision is intentionally not used.
// A row with a missing year or month borrows the basis of the nearest
// fully observed row in the subject's block; when the block has none,
// the duration is missing.
func elapsed(year, month []float64, lo, hi, i0, i1 int) float64 {
	j0 := basisNear(year, month, lo, hi, i0)
	j1 := basisNear(year, month, lo, hi, i1)
	if j0 < 0 || j1 < 0 {
		return Missing()
	}
	return (year[j1] - year[j0]) + (month[j1]-month[j0])/12
}

// DeriveEvents scans each subject's wave-ordered history and attaches,
// for every condition, a duration column and an event column to a copy
// of the reference table ref.
//
// A subject positive at the first observed wave gets duration 0 and
// event 1.  Otherwise the duration runs from the first wave to the
// first wave where the flag equals 1 (event 1), or to the last observed
// wave if the flag never equals 1 (event 0).  A missing flag never
// counts as positive.  A wave with a missing year or month borrows
// the nearest fully observed wave's time basis; a subject whose block
// has no complete basis keeps the event indicator but gets a missing
// duration.
//
// Subjects in ref with no panel history are excluded from the returned
// table and reported in the second return value; they do not fail the
// run.
func DeriveEvents(p *Panel, ref *Table, conditions []string) (*Table, []MissingHistoryError, error) {

	for _, na := range conditions {
		if !p.tbl.HasCol(na) {
			return nil, nil, fmt.Errorf("panel: condition '%s' not found", na)
		}
	}
	if !ref.HasCol(p.subjectVar) {
		return nil, nil, fmt.Errorf("panel: reference table lacks subject column '%s'", p.subjectVar)
	}

	subj := p.tbl.Col(p.subjectVar)
	year := p.tbl.Col(p.yearVar)
	month := p.tbl.Col(p.monthVar)

	// Subject key -> block of panel rows
	blocks := make(map[float64][2]int, p.NumSubject())
	for _, ix := range p.groups() {
		blocks[subj[ix[0]]] = ix
	}

	rsubj := ref.Col(p.subjectVar)

	var keep []int
	var missing []MissingHistoryError
	for i, s := range rsubj {
		if _, ok := blocks[s]; ok {
			keep = append(keep, i)
		} else {
			missing = append(missing, MissingHistoryError{Subject: s})
		}
	}

	out := ref.Subset(keep)

	for _, cond := range conditions {

		flag := p.tbl.Col(cond)
		dur := make([]float64, len(keep))
		evt := make([]float64, len(keep))

		for i, r := range keep {

			ix := blocks[rsubj[r]]

			if flag[ix[0]] == 1 {
				// Already positive at entry
				dur[i] = 0
				evt[i] = 1
				continue
			}

			found := -1
			for k := ix[0] + 1; k < ix[1]; k++ {
				if flag[k] == 1 {
					found = k
					break
				}
			}

			if found >= 0 {
				dur[i] = elapsed(year, month, ix[0], ix[1], ix[0], found)
				evt[i] = 1
			} else {
				dur[i] = elapsed(year, month, ix[0], ix[1], ix[0], ix[1]-1)
				evt[i] = 0
			}
		}

		if err := out.AddCol(cond+EventSuffixTime, dur); err != nil {
			return nil, nil, err
		}
		if err := out.AddCol(cond+EventSuffixStatus, evt); err != nil {
			return nil, nil, err
		}
	}

	return out, missing, nil
}
