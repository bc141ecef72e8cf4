// Package config defines the analysis configuration and its loading.
//
// Configuration is layered: compiled defaults, then an optional YAML
// file, then environment variables with the SURVGRID_ prefix.
package config

import "runtime"

// ModelSpec is one adjustment model: a name and the covariates fitted
// beyond the main predictor.
type ModelSpec struct {
	Name       string   `koanf:"name"`
	Covariates []string `koanf:"covariates"`
}

// Config describes one analysis run.
type Config struct {

	// Panel key columns.
	SubjectVar string `koanf:"subject_var"`
	WaveVar    string `koanf:"wave_var"`
	YearVar    string `koanf:"year_var"`
	MonthVar   string `koanf:"month_var"`

	// Fields carried from the panel into the reference record.
	Fields []string `koanf:"fields"`

	// Required fields; subjects missing any of them after
	// reduction and imputation are dropped.
	Required []string `koanf:"required"`

	// The grid axes.
	Predictors []string    `koanf:"predictors"`
	Endpoints  []string    `koanf:"endpoints"`
	Models     []ModelSpec `koanf:"models"`

	// Quantiles > 1 fits each predictor as quantile-group
	// indicators instead of a linear term.
	Quantiles int `koanf:"quantiles"`

	// Workers bounds the grid worker pool.
	Workers int `koanf:"workers"`

	// CellBudgetMS is the optional per-cell time budget in
	// milliseconds; 0 disables it.
	CellBudgetMS int `koanf:"cell_budget_ms"`

	// Level is the confidence level for interval estimates.
	Level float64 `koanf:"level"`

	// PThreshold is the significance threshold for summaries.
	PThreshold float64 `koanf:"p_threshold"`

	// Horizons are the follow-up times at which time-dependent
	// discrimination is evaluated.
	Horizons []float64 `koanf:"horizons"`

	// Sensitivity enables the companion analysis that excludes
	// subjects already positive at their first observed wave.
	Sensitivity bool `koanf:"sensitivity"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		SubjectVar: "id",
		WaveVar:    "wave",
		YearVar:    "year",
		MonthVar:   "month",
		Workers:    runtime.NumCPU(),
		Level:      0.95,
		PThreshold: 0.05,
	}
}
