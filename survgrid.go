// Package survgrid turns longitudinal panel survey data into
// time-to-event outcomes and evaluates continuous risk indices against
// chronic-disease endpoints with proportional-hazards models fit over
// a (predictor, endpoint, adjustment-model) grid.
package survgrid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brookluers/survgrid/config"
	"github.com/brookluers/survgrid/evaluate"
	"github.com/brookluers/survgrid/grid"
	"github.com/brookluers/survgrid/panel"
	"github.com/brookluers/survgrid/report"
)

// VarKind tags a variable for the imputation collaborator.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

// Completer is the imputation collaborator: it consumes a dataset with
// missing values and variable-type tags and returns a complete dataset
// of identical shape.  It is treated as a pure function.
type Completer func(tbl *panel.Table, kinds map[string]VarKind) (*panel.Table, error)

// Analysis runs the full pipeline: panel reduction, imputation,
// event-time derivation, the model grid, evaluation, and aggregation.
type Analysis struct {
	Config *config.Config

	// Fitter is the regression collaborator; nil selects the
	// default proportional-hazards fitter.
	Fitter grid.Fitter

	// Complete is the imputation collaborator; nil skips the step.
	Complete Completer

	// VarKinds tags variables for the imputation collaborator.
	VarKinds map[string]VarKind

	// Log receives phase and diagnostic output; nil disables it.
	Log *slog.Logger
}

func (a *Analysis) logf() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Run executes the analysis on a panel.  Only dataset-level structural
// problems return an error; anything scoped to a single grid cell or
// evaluation is collected into the report's notices.
func (a *Analysis) Run(ctx context.Context, p *panel.Panel) (*report.Report, error) {

	cfg := a.Config
	if cfg == nil {
		return nil, fmt.Errorf("survgrid: no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fitter := a.Fitter
	if fitter == nil {
		fitter = &grid.PHFitter{}
	}

	log := a.logf()

	// Reference records: most recent non-missing value per field.
	ref, err := panel.Reduce(p, cfg.Fields)
	if err != nil {
		return nil, err
	}
	log.Info("panel reduced", "subjects", ref.NumRow())

	if a.Complete != nil {
		ref, err = a.Complete(ref, a.VarKinds)
		if err != nil {
			return nil, fmt.Errorf("survgrid: imputation: %w", err)
		}
	}

	if len(cfg.Required) > 0 {
		ref, err = panel.DropIncomplete(ref, cfg.Required)
		if err != nil {
			return nil, err
		}
		log.Info("required-field filter applied", "subjects", ref.NumRow())
	}

	// Event derivation must complete before the grid starts; the
	// table is read-only from here on.
	tbl, excluded, err := panel.DeriveEvents(p, ref, cfg.Endpoints)
	if err != nil {
		return nil, err
	}
	for _, e := range excluded {
		log.Warn("subject excluded", "err", e.Error())
	}

	models := make([]grid.Model, len(cfg.Models))
	covByModel := make(map[string][]string, len(cfg.Models))
	for i, m := range cfg.Models {
		models[i] = grid.Model{Name: m.Name, Covariates: m.Covariates}
		covByModel[m.Name] = m.Covariates
	}

	runner := &grid.Runner{
		Predictors: cfg.Predictors,
		Endpoints:  cfg.Endpoints,
		Models:     models,
		Fitter:     fitter,
		Workers:    cfg.Workers,
		Quantiles:  cfg.Quantiles,
		CellBudget: time.Duration(cfg.CellBudgetMS) * time.Millisecond,
		Level:      cfg.Level,
		Log:        a.Log,
	}

	res, err := runner.Run(ctx, tbl)
	if err != nil {
		return nil, err
	}
	log.Info("grid complete", "attempted", res.Attempted, "succeeded", res.Succeeded)

	rep := &report.Report{
		Regression:       res.Rows,
		Notices:          res.Notices,
		Excluded:         excluded,
		RegressionCounts: report.Counts{Attempted: res.Attempted, Succeeded: res.Succeeded},
	}

	a.evaluateCells(ctx, tbl, runner, covByModel, res, rep)

	if cfg.Sensitivity {
		a.runSensitivity(ctx, tbl, runner, rep)
	}

	return rep, nil
}

// successfulSpecs lists the distinct cells that produced regression
// rows, in row order.
func successfulSpecs(res *grid.Result) []grid.Spec {

	type key struct{ p, e, m string }
	seen := make(map[key]bool)

	var specs []grid.Spec
	for _, row := range res.Rows {
		k := key{row.Predictor, row.Endpoint, row.Model}
		if seen[k] {
			continue
		}
		seen[k] = true
		specs = append(specs, grid.Spec{
			Predictor: row.Predictor,
			Endpoint:  row.Endpoint,
			Model:     grid.Model{Name: row.Model},
		})
	}

	return specs
}

// budgetFitter routes refits through the runner so evaluation obeys
// the same per-cell time budget and cancellation as the grid.
type budgetFitter struct {
	ctx    context.Context
	runner *grid.Runner
}

func (b budgetFitter) Fit(time0, status string, covariates []string, tbl *panel.Table) (*grid.FitResult, error) {
	return b.runner.FitWithBudget(b.ctx, time0, status, covariates, tbl)
}

// cellEval collects one cell's evaluation output so the workers can
// write without sharing and the merge stays in cell order.
type cellEval struct {
	ran     bool
	perfOK  bool
	assumOK bool
	perf    []report.PerfRow
	assum   []report.AssumptionRow
	notices []grid.Notice
}

// evaluateCells computes discrimination and assumption diagnostics for
// every successful cell.  The risk score is the linear predictor of
// the cell's model with the predictor entered linearly.  Cells run on
// the same bounded worker pool shape as the grid: cancelling the
// context stops dispatching new cells, and every refit goes through
// the runner's per-cell time budget.  Each computation is
// fault-isolated; failures become notices.
func (a *Analysis) evaluateCells(ctx context.Context, tbl *panel.Table, runner *grid.Runner, covByModel map[string][]string, res *grid.Result, rep *report.Report) {

	specs := successfulSpecs(res)
	if len(specs) == 0 {
		return
	}

	nworker := runner.Workers
	if nworker <= 0 {
		nworker = runtime.GOMAXPROCS(0)
	}
	if nworker > len(specs) {
		nworker = len(specs)
	}

	g, ctx := errgroup.WithContext(ctx)

	work := make(chan int)
	go func() {
		defer close(work)
		for i := range specs {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make([]cellEval, len(specs))
	fitter := budgetFitter{ctx: ctx, runner: runner}

	for w := 0; w < nworker; w++ {
		g.Go(func() error {
			for i := range work {
				out[i] = a.evaluateOne(fitter, tbl, specs[i], covByModel)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range out {
		ev := &out[i]
		if !ev.ran {
			continue
		}
		rep.PerformanceCounts.Attempted++
		rep.AssumptionCounts.Attempted++
		if ev.perfOK {
			rep.PerformanceCounts.Succeeded++
		}
		if ev.assumOK {
			rep.AssumptionCounts.Succeeded++
		}
		rep.Performance = append(rep.Performance, ev.perf...)
		rep.Assumption = append(rep.Assumption, ev.assum...)
		rep.Notices = append(rep.Notices, ev.notices...)
	}
}

// evaluateOne refits one cell and derives its performance and
// assumption rows.
func (a *Analysis) evaluateOne(fitter grid.Fitter, tbl *panel.Table, s grid.Spec, covByModel map[string][]string) cellEval {

	ev := cellEval{ran: true}

	covs := append([]string{s.Predictor}, covByModel[s.Model.Name]...)

	fr, err := fitter.Fit(s.TimeVar(), s.StatusVar(), covs, tbl)
	if err != nil {
		a.logf().Warn("evaluation refit failed", "endpoint", s.Endpoint, "predictor", s.Predictor, "err", err)
		ev.notices = append(ev.notices, grid.Notice{Spec: s, Err: err})
		return ev
	}

	cr, err := evaluate.Concordance(fr.Time, fr.Status, fr.Scores, evaluate.DefaultTau(fr.Time), a.Config.Level)
	if err != nil {
		ev.notices = append(ev.notices, grid.Notice{Spec: s, Err: err})
	} else {
		ev.perfOK = true
		ev.perf = append(ev.perf, report.PerfRow{
			Predictor: s.Predictor,
			Endpoint:  s.Endpoint,
			Model:     s.Model.Name,
			C:         cr.C,
			CLCB:      cr.LCB,
			CUCB:      cr.UCB,
			N:         cr.N,
			Events:    cr.Events,
		})
	}

	for _, h := range a.Config.Horizons {
		auc, err := evaluate.TimeAUC(fr.Time, fr.Status, fr.Scores, h)
		if err != nil {
			ev.notices = append(ev.notices, grid.Notice{Spec: s, Err: err})
			continue
		}
		ev.perfOK = true
		ev.perf = append(ev.perf, report.PerfRow{
			Predictor: s.Predictor,
			Endpoint:  s.Endpoint,
			Model:     s.Model.Name,
			Horizon:   h,
			AUC:       auc,
			N:         fr.NObs,
			Events:    fr.NEvents,
		})
	}

	tests, err := evaluate.CheckProportionality(fitter, tbl, s.TimeVar(), s.StatusVar(), covs)
	if err != nil {
		ev.notices = append(ev.notices, grid.Notice{Spec: s, Err: err})
		return ev
	}
	ev.assumOK = true
	for _, pt := range tests {
		ev.assum = append(ev.assum, report.AssumptionRow{
			Predictor: s.Predictor,
			Endpoint:  s.Endpoint,
			Model:     s.Model.Name,
			Term:      pt.Term,
			Stat:      pt.Stat,
			PValue:    pt.PValue,
			Met:       pt.Met,
		})
	}

	return ev
}

// runSensitivity reruns the grid per endpoint with the subjects who
// were already positive at their first observed wave excluded.
func (a *Analysis) runSensitivity(ctx context.Context, tbl *panel.Table, runner *grid.Runner, rep *report.Report) {

	log := a.logf()

	for _, e := range a.Config.Endpoints {

		dur := tbl.Col(e + panel.EventSuffixTime)
		evt := tbl.Col(e + panel.EventSuffixStatus)
		if dur == nil || evt == nil {
			continue
		}

		var keep []int
		for i := range dur {
			if !(dur[i] == 0 && evt[i] == 1) {
				keep = append(keep, i)
			}
		}

		sub := *runner
		sub.Endpoints = []string{e}

		res, err := sub.Run(ctx, tbl.Subset(keep))
		if err != nil {
			log.Warn("sensitivity grid failed", "endpoint", e, "err", err)
			continue
		}

		rep.Sensitivity = append(rep.Sensitivity, res.Rows...)
		rep.Notices = append(rep.Notices, res.Notices...)
		rep.SensitivityCounts.Attempted += res.Attempted
		rep.SensitivityCounts.Succeeded += res.Succeeded
	}
}
