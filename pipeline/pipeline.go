/*
Package pipeline sequences the analysis: fetch the survey tables, merge
them on the subject identifier, derive the analysis variables, filter
the cohort, run the bivariable association and the model bank, and
export everything. The stages run strictly in order; each source
table's fetch is isolated so that one failure does not abort the
others.
*/

package pipeline

import (
	"errors"
	"log"

	"github.com/jasonma1333/BMS2901Project/cohort"
	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/derive"
	"github.com/jasonma1333/BMS2901Project/frame"
	"github.com/jasonma1333/BMS2901Project/model"
	"github.com/jasonma1333/BMS2901Project/nhanes"
	"github.com/jasonma1333/BMS2901Project/report"
)

// Fetcher retrieves one raw source table by dataset code.
type Fetcher interface {
	Fetch(code string, fields []string) (*frame.Table, error)
}

// Result carries the populated artifacts of one run. A nil slot means
// the artifact was not produced; consumers check presence, not names.
type Result struct {
	Cohort      *frame.Table
	Descriptive *frame.Table
	Contingency *model.Contingency
	ChiSquare   *model.ChiSquareResult
	Fits        []*model.Fit
}

// Run executes the whole pipeline and writes artifacts under outDir.
// It returns an error only for the fatal conditions: every fetch
// failed, a fetched table lacked the subject identifier, or no subject
// has both exposure and outcome observed.
func Run(fetcher Fetcher, cb *config.Codebook, outDir string) (*Result, error) {
	var tables []*frame.Table
	for _, ts := range cb.Table {
		t, err := fetcher.Fetch(ts.Name, ts.Fields)
		if err != nil {
			if errors.Is(err, nhanes.ErrIDMissing) {
				return nil, err
			}
			log.Printf("pipeline: fetching %s failed: %v; continuing with the remaining tables", ts.Name, err)
			continue
		}
		tables = append(tables, t)
	}

	merged, err := frame.Merge(config.IDField, tables...)
	if err != nil {
		return nil, err
	}
	log.Printf("pipeline: merged %d tables into %d subjects x %d columns",
		len(tables), merged.NumRow(), merged.NumCol())

	derived, err := derive.Run(merged, cb)
	if err != nil {
		return nil, err
	}

	res := &Result{Cohort: cohort.Build(derived, cb)}

	exp, err := report.NewExporter(outDir)
	if err != nil {
		report.Warn("output directory", err)
		exp = nil
	}

	if res.Cohort.NumRow() == 0 {
		log.Printf("pipeline: analysis cohort is empty; skipping descriptive and model steps")
		return res, nil
	}

	res.Descriptive = report.Describe(res.Cohort, cb)

	ct, err := model.Crosstab(res.Cohort, config.ExposureVar, config.OutcomeVar)
	if err != nil {
		log.Printf("pipeline: bivariable association unavailable: %v", err)
	} else {
		res.Contingency = ct
		cs := ct.ChiSquare(1, 2000)
		if cs.Simulated {
			log.Printf("pipeline: chi-squared expected counts below 5; using simulated p-value")
		}
		res.ChiSquare = &cs
	}

	for _, sp := range model.Bank() {
		res.Fits = append(res.Fits, model.Run(res.Cohort, sp))
	}

	if exp != nil {
		exp.Descriptive(res.Descriptive)
		if res.Contingency != nil {
			report.Warn("contingency table", exp.Contingency(res.Contingency))
		}
		if res.ChiSquare != nil {
			report.Warn("chi-squared result", exp.ChiSquare(*res.ChiSquare))
		}
		for _, f := range res.Fits {
			report.Warn("model "+f.Spec.Name, exp.ModelFit(f))
		}
		report.Warn("forest plot", exp.ForestPlot(res.Fits))
		report.Warn("age histogram", exp.AgeHistogram(res.Cohort))
		report.Warn("cohort serialization", exp.Cohort(res.Cohort))
	}

	return res, nil
}
