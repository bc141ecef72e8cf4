package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/brookluers/survgrid/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.SubjectVar, convey.ShouldEqual, "id")
			convey.So(cfg.WaveVar, convey.ShouldEqual, "wave")
			convey.So(cfg.Workers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Level, convey.ShouldEqual, 0.95)
			convey.So(cfg.PThreshold, convey.ShouldEqual, 0.05)
			convey.So(cfg.Quantiles, convey.ShouldEqual, 0)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config missing its grid axes", t, func() {
		cfg := config.New()

		convey.Convey("Then validation should fail", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the axes are filled in", func() {
			cfg.Predictors = []string{"frailty"}
			cfg.Endpoints = []string{"diab"}
			cfg.Models = []config.ModelSpec{{Name: "minimal", Covariates: []string{"age"}}}

			convey.So(cfg.Validate(), convey.ShouldBeNil)

			convey.Convey("And a single quantile group is rejected", func() {
				cfg.Quantiles = 1
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

const yamlDoc = `
predictors: [frailty, inflam]
endpoints: [diab, cvd]
models:
  - name: minimal
    covariates: [age, sex]
  - name: full
    covariates: [age, sex, smoker]
workers: 3
horizons: [2, 4, 6]
sensitivity: true
`

func TestConfig_Load(t *testing.T) {
	convey.Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "analysis.yaml")
		convey.So(os.WriteFile(path, []byte(yamlDoc), 0o600), convey.ShouldBeNil)

		convey.Convey("When it is loaded", func() {
			cfg, err := config.Load(path)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the file overrides the defaults", func() {
				convey.So(cfg.Predictors, convey.ShouldResemble, []string{"frailty", "inflam"})
				convey.So(len(cfg.Models), convey.ShouldEqual, 2)
				convey.So(cfg.Models[1].Covariates, convey.ShouldResemble, []string{"age", "sex", "smoker"})
				convey.So(cfg.Workers, convey.ShouldEqual, 3)
				convey.So(cfg.Sensitivity, convey.ShouldBeTrue)

				convey.Convey("And untouched fields keep their defaults", func() {
					convey.So(cfg.SubjectVar, convey.ShouldEqual, "id")
					convey.So(cfg.Level, convey.ShouldEqual, 0.95)
				})
			})
		})

		convey.Convey("When an env var is also set", func() {
			t.Setenv("SURVGRID_WORKERS", "7")
			cfg, err := config.Load(path)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then env wins over the file", func() {
				convey.So(cfg.Workers, convey.ShouldEqual, 7)
			})
		})
	})
}
