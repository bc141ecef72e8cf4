// Package panel converts longitudinal panel survey data into
// subject-level reference records and time-to-event outcomes.
package panel

import (
	"fmt"
	"math"
	"sort"
)

// IsMissing reports whether a value represents a missing observation.
// Missing values are encoded as NaN throughout.
func IsMissing(x float64) bool {
	return math.IsNaN(x)
}

// Missing returns the missing-value sentinel.
func Missing() float64 {
	return math.NaN()
}

// MalformedPanelError indicates a structural violation of the panel
// contract: a subject with two records for the same wave.  The panel
// cannot be trusted and the run must stop.
type MalformedPanelError struct {
	Subject float64
	Wave    float64
}

func (e *MalformedPanelError) Error() string {
	return fmt.Sprintf("panel: subject %v has duplicate records for wave %v", e.Subject, e.Wave)
}

// MissingHistoryError indicates that a subject reached the event-time
// deriver with no panel records.  The subject is excluded; the run
// continues.
type MissingHistoryError struct {
	Subject float64
}

func (e *MissingHistoryError) Error() string {
	return fmt.Sprintf("panel: subject %v has no panel history", e.Subject)
}

// Table is a column-major rectangular dataset.  Each column is a
// []float64 and missing values are NaN.  Tables widen by column
// attachment; rows are never mutated after construction.
type Table struct {
	names []string
	cols  [][]float64
}

// NewTable creates a Table from columns and their names.  All columns
// must have the same length.
func NewTable(cols [][]float64, names []string) (*Table, error) {

	if len(cols) != len(names) {
		return nil, fmt.Errorf("panel: %d columns but %d names", len(cols), len(names))
	}

	for j := 1; j < len(cols); j++ {
		if len(cols[j]) != len(cols[0]) {
			return nil, fmt.Errorf("panel: column '%s' has length %d, expected %d",
				names[j], len(cols[j]), len(cols[0]))
		}
	}

	seen := make(map[string]bool)
	for _, na := range names {
		if seen[na] {
			return nil, fmt.Errorf("panel: duplicate column name '%s'", na)
		}
		seen[na] = true
	}

	return &Table{names: names, cols: cols}, nil
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	return t.names
}

// NumRow returns the number of rows.
func (t *Table) NumRow() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// NumCol returns the number of columns.
func (t *Table) NumCol() int {
	return len(t.cols)
}

// HasCol reports whether the table contains the named column.
func (t *Table) HasCol(name string) bool {
	for _, na := range t.names {
		if na == name {
			return true
		}
	}
	return false
}

// Col returns the named column, or nil if it is not present.  The
// returned slice aliases the table's storage.
func (t *Table) Col(name string) []float64 {
	for j, na := range t.names {
		if na == name {
			return t.cols[j]
		}
	}
	return nil
}

// AddCol attaches a new column to the table.
func (t *Table) AddCol(name string, x []float64) error {

	if t.HasCol(name) {
		return fmt.Errorf("panel: column '%s' already present", name)
	}
	if len(t.cols) > 0 && len(x) != t.NumRow() {
		return fmt.Errorf("panel: column '%s' has length %d, expected %d", name, len(x), t.NumRow())
	}

	t.names = append(t.names, name)
	t.cols = append(t.cols, x)

	return nil
}

// Subset returns a new table holding only the given rows, in order.
func (t *Table) Subset(rows []int) *Table {

	cols := make([][]float64, len(t.cols))
	for j, c := range t.cols {
		z := make([]float64, len(rows))
		for i, r := range rows {
			z[i] = c[r]
		}
		cols[j] = z
	}

	names := make([]string, len(t.names))
	copy(names, t.names)

	return &Table{names: names, cols: cols}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {

	cols := make([][]float64, len(t.cols))
	for j, c := range t.cols {
		z := make([]float64, len(c))
		copy(z, c)
		cols[j] = z
	}

	names := make([]string, len(t.names))
	copy(names, t.names)

	return &Table{names: names, cols: cols}
}

// Panel is a longitudinal table with one row per (subject, wave).  On
// construction the rows are sorted by subject then wave and grouped so
// that each subject's history is a contiguous block.
type Panel struct {

	// The sorted panel data
	tbl *Table

	// Column names for the subject key, wave index, and the
	// year/month time basis
	subjectVar string
	waveVar    string
	yearVar    string
	monthVar   string

	// Start and end row of each subject's block
	subjectix [][2]int
}

// NewPanel creates a Panel from a table and the names of its subject,
// wave, year, and month columns.  The input table is not modified.
// A duplicate wave within a subject returns MalformedPanelError.
func NewPanel(tbl *Table, subject, wave, year, month string) (*Panel, error) {

	for _, na := range []string{subject, wave, year, month} {
		if !tbl.HasCol(na) {
			return nil, fmt.Errorf("panel: column '%s' not found", na)
		}
	}

	tbl = tbl.Clone()
	nobs := tbl.NumRow()

	subj := tbl.Col(subject)
	wv := tbl.Col(wave)

	inds := make([]int, nobs)
	for i := range inds {
		inds[i] = i
	}
	sort.SliceStable(inds, func(i, j int) bool {
		if subj[inds[i]] != subj[inds[j]] {
			return subj[inds[i]] < subj[inds[j]]
		}
		return wv[inds[i]] < wv[inds[j]]
	})

	tmp := make([]float64, nobs)
	for j := range tbl.cols {
		x := tbl.cols[j]
		for i, k := range inds {
			tmp[i] = x[k]
		}
		x, tmp = tmp, x
		tbl.cols[j] = x
	}

	subj = tbl.Col(subject)
	wv = tbl.Col(wave)

	p := &Panel{
		tbl:        tbl,
		subjectVar: subject,
		waveVar:    wave,
		yearVar:    year,
		monthVar:   month,
	}

	var i0 int
	for i := 0; i <= nobs; i++ {
		if i == nobs || (i > 0 && subj[i-1] != subj[i]) {
			p.subjectix = append(p.subjectix, [2]int{i0, i})
			i0 = i
		}
	}

	for _, ix := range p.subjectix {
		for i := ix[0] + 1; i < ix[1]; i++ {
			if wv[i] == wv[i-1] {
				return nil, &MalformedPanelError{Subject: subj[i], Wave: wv[i]}
			}
		}
	}

	return p, nil
}

// Table returns the sorted panel table.
func (p *Panel) Table() *Table {
	return p.tbl
}

// SubjectVar returns the name of the subject key column.
func (p *Panel) SubjectVar() string {
	return p.subjectVar
}

// NumSubject returns the number of distinct subjects.
func (p *Panel) NumSubject() int {
	return len(p.subjectix)
}

// groups returns the row range of each subject's block in wave order.
func (p *Panel) groups() [][2]int {
	return p.subjectix
}
