package grid

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/brookluers/survgrid/panel"
)

// Runner drives the model grid.  Cells are independent: each reads the
// shared immutable table and produces its own rows, so they run on a
// bounded worker pool with per-worker accumulation merged at the end.
type Runner struct {
	Predictors []string
	Endpoints  []string
	Models     []Model

	// Fitter performs the per-cell regression.  Required.
	Fitter Fitter

	// Workers bounds the pool; 0 means GOMAXPROCS.
	Workers int

	// Quantiles > 1 replaces each predictor with indicator columns
	// for its quantile groups (lowest group is the reference), and
	// the coefficients of interest become all indicators.
	Quantiles int

	// CellBudget is an optional per-cell time limit.  A cell that
	// exceeds it is recorded as a fit failure; its goroutine is
	// left to finish in the background.
	CellBudget time.Duration

	// Level is the confidence level for the hazard-ratio bounds;
	// 0 means 0.95.
	Level float64

	// Log receives per-cell diagnostics; nil disables logging.
	Log *slog.Logger
}

// Run executes the grid.  Cancelling the context stops dispatching new
// cells; rows from completed cells remain valid.  Only a configuration
// error is returned; everything cell-scoped becomes a Notice.
func (r *Runner) Run(ctx context.Context, tbl *panel.Table) (*Result, error) {

	if r.Fitter == nil {
		return nil, fmt.Errorf("grid: no fitter configured")
	}
	if len(r.Predictors) == 0 || len(r.Endpoints) == 0 || len(r.Models) == 0 {
		return nil, fmt.Errorf("grid: predictors, endpoints and models must all be non-empty")
	}

	specs := Enumerate(r.Predictors, r.Endpoints, r.Models)

	nworker := r.Workers
	if nworker <= 0 {
		nworker = runtime.GOMAXPROCS(0)
	}
	if nworker > len(specs) {
		nworker = len(specs)
	}

	g, ctx := errgroup.WithContext(ctx)

	work := make(chan Spec)
	go func() {
		defer close(work)
		for _, s := range specs {
			select {
			case work <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	type shard struct {
		rows      []Row
		notices   []Notice
		attempted int
	}

	shards := make([]shard, nworker)
	for w := 0; w < nworker; w++ {
		sh := &shards[w]
		g.Go(func() error {
			for s := range work {
				sh.attempted++
				rows, err := r.runCell(ctx, s, tbl)
				if err != nil {
					if r.Log != nil {
						r.Log.Warn("cell skipped",
							"predictor", s.Predictor,
							"endpoint", s.Endpoint,
							"model", s.Model.Name,
							"err", err)
					}
					sh.notices = append(sh.notices, Notice{Spec: s, Err: err})
					continue
				}
				sh.rows = append(sh.rows, rows...)
			}
			return nil
		})
	}

	// Worker errors are impossible by construction; the group is
	// used for its bounded-wait semantics.
	_ = g.Wait()

	res := &Result{}
	for i := range shards {
		res.Rows = append(res.Rows, shards[i].rows...)
		res.Notices = append(res.Notices, shards[i].notices...)
		res.Attempted += shards[i].attempted
	}
	res.Succeeded = res.Attempted - len(res.Notices)

	// Deterministic output order: enumeration order of the cells,
	// with each cell's terms kept in fit order.
	sort.SliceStable(res.Rows, func(i, j int) bool {
		return res.Rows[i].cell < res.Rows[j].cell
	})
	sort.SliceStable(res.Notices, func(i, j int) bool {
		return res.Notices[i].Spec.cell < res.Notices[j].Spec.cell
	})

	return res, nil
}

// runCell fits one cell and extracts the rows for its coefficients of
// interest.  All failure modes are returned as errors; panics in the
// fitting path are recovered by the fitter, and a second recovery here
// guards the cell assembly itself.
func (r *Runner) runCell(ctx context.Context, s Spec, tbl *panel.Table) (rows []Row, err error) {

	defer func() {
		if p := recover(); p != nil {
			rows = nil
			err = &FitFailure{Spec: s, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	for _, na := range append([]string{s.TimeVar(), s.StatusVar(), s.Predictor}, s.Model.Covariates...) {
		if !tbl.HasCol(na) {
			return nil, &SchemaGapError{Spec: s, Column: na}
		}
	}

	ftbl := tbl
	terms := []string{s.Predictor}

	if r.Quantiles > 1 {
		var ferr error
		ftbl, terms, ferr = withQuantileGroups(tbl, s.Predictor, r.Quantiles)
		if ferr != nil {
			return nil, &FitFailure{Spec: s, Err: ferr}
		}
	}

	covariates := append(append([]string{}, terms...), s.Model.Covariates...)

	fr, ferr := r.FitWithBudget(ctx, s.TimeVar(), s.StatusVar(), covariates, ftbl)
	if ferr != nil {
		return nil, &FitFailure{Spec: s, Err: ferr}
	}

	level := r.Level
	if level == 0 {
		level = 0.95
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + level/2)

	pos := make(map[string]int)
	for j, na := range fr.Names {
		pos[na] = j
	}

	for _, term := range terms {
		j, ok := pos[term]
		if !ok {
			return nil, &FitFailure{Spec: s, Err: fmt.Errorf("term '%s' missing from fit", term)}
		}
		b := fr.Coeff[j]
		se := fr.StdErr[j]
		zs := b / se
		rows = append(rows, Row{
			Predictor: s.Predictor,
			Endpoint:  s.Endpoint,
			Model:     s.Model.Name,
			Term:      term,
			HR:        math.Exp(b),
			LCB:       math.Exp(b - z*se),
			UCB:       math.Exp(b + z*se),
			PValue:    2 * distuv.Normal{Mu: 0, Sigma: 1}.CDF(-math.Abs(zs)),
			N:         fr.NObs,
			Events:    fr.NEvents,
			cell:      s.cell,
		})
	}

	return rows, nil
}

// FitWithBudget runs one fit through the runner's fitter, optionally
// bounded by the per-cell time budget and the context.  Budget
// exhaustion takes the same failure path as numerical non-convergence.
// Evaluation refits go through here too so every fit in a run obeys
// the same limits.
func (r *Runner) FitWithBudget(ctx context.Context, time0, status string, covariates []string, tbl *panel.Table) (*FitResult, error) {

	if r.CellBudget <= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.Fitter.Fit(time0, status, covariates, tbl)
	}

	type out struct {
		fr  *FitResult
		err error
	}

	done := make(chan out, 1)
	go func() {
		fr, err := r.Fitter.Fit(time0, status, covariates, tbl)
		done <- out{fr, err}
	}()

	t := time.NewTimer(r.CellBudget)
	defer t.Stop()

	select {
	case o := <-done:
		return o.fr, o.err
	case <-t.C:
		return nil, fmt.Errorf("cell exceeded time budget %v", r.CellBudget)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
