/*
Package report renders and exports the analysis artifacts: the
descriptive table, the bivariable association, the fitted model
coefficient tables, the diagnostic plots, and the serialized cohort.
Every artifact is written as its own file under the output directory,
and any single export failure degrades to a logged warning; reporting
never aborts the run.
*/

package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/frame"
	"github.com/jasonma1333/BMS2901Project/model"
)

// Exporter writes artifacts into one output directory.
type Exporter struct {
	Dir string
}

func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, pfx.Err(err)
	}
	return &Exporter{Dir: dir}, nil
}

// Warn logs an export failure without propagating it.
func Warn(artifact string, err error) {
	if err != nil {
		log.Printf("report: could not export %s: %v", artifact, err)
	}
}

// Describe builds the descriptive ("Table 1") summary of the cohort by
// exposure group: group sizes, mean (SD) of the continuous measures,
// and level counts with percentages for the categorical ones.
func Describe(cohort *frame.Table, cb *config.Codebook) *frame.Table {
	ex := cohort.Col(config.ExposureVar)
	var groups []string
	if ex != nil && ex.IsFactor() {
		groups = ex.ObservedLevels()
	}
	if len(groups) == 0 {
		groups = []string{"all"}
	}

	rowsOf := make(map[string][]int)
	for _, g := range groups {
		rowsOf[g] = groupRows(ex, cohort.NumRow(), g)
	}

	var variable, level []null.String
	cells := make(map[string][]null.String)
	addRow := func(va, lv string, vals map[string]string) {
		variable = append(variable, null.StringFrom(va))
		level = append(level, null.StringFrom(lv))
		for _, g := range groups {
			cells[g] = append(cells[g], null.StringFrom(vals[g]))
		}
	}

	nvals := make(map[string]string)
	for _, g := range groups {
		nvals[g] = strconv.Itoa(len(rowsOf[g]))
	}
	addRow("n", "", nvals)

	for _, spec := range cb.Numeric {
		s := cohort.Col(spec.Name)
		if s == nil || s.Kind != frame.Numeric {
			continue
		}
		vals := make(map[string]string)
		for _, g := range groups {
			var xs []float64
			for _, r := range rowsOf[g] {
				if s.Floats[r].Valid {
					xs = append(xs, s.Floats[r].Float64)
				}
			}
			if len(xs) == 0 {
				vals[g] = ""
				continue
			}
			vals[g] = fmt.Sprintf("%.1f (%.1f)", stat.Mean(xs, nil), stat.StdDev(xs, nil))
		}
		addRow(spec.Name, "mean (sd)", vals)
	}

	for _, s := range cohort.Series {
		if !s.IsFactor() || s.Name == config.ExposureVar {
			continue
		}
		for _, lv := range s.Levels {
			vals := make(map[string]string)
			for _, g := range groups {
				count, denom := 0, 0
				for _, r := range rowsOf[g] {
					if !s.Strings[r].Valid {
						continue
					}
					denom++
					if s.Strings[r].String == lv {
						count++
					}
				}
				if denom == 0 {
					vals[g] = "0"
					continue
				}
				vals[g] = fmt.Sprintf("%d (%.1f%%)", count, 100*float64(count)/float64(denom))
			}
			addRow(s.Name, lv, vals)
		}
	}

	out := &frame.Table{}
	out.Series = append(out.Series, frame.NewText("variable", variable))
	out.Series = append(out.Series, frame.NewText("level", level))
	for _, g := range groups {
		na := fmt.Sprintf("%s=%s", config.ExposureVar, g)
		out.Series = append(out.Series, frame.NewText(na, cells[g]))
	}
	return out
}

func groupRows(ex *frame.Series, n int, level string) []int {
	var out []int
	for i := 0; i < n; i++ {
		if ex == nil || !ex.IsFactor() {
			out = append(out, i)
			continue
		}
		if ex.Strings[i].Valid && ex.Strings[i].String == level {
			out = append(out, i)
		}
	}
	return out
}

// Descriptive writes the descriptive table as TSV, falling back to a
// crude plain-text rendering if the TSV export fails.
func (e *Exporter) Descriptive(t *frame.Table) {
	path := filepath.Join(e.Dir, "table1.tsv")
	if err := frame.WriteTSVFile(t, path); err == nil {
		return
	} else {
		Warn("descriptive table", err)
	}

	f, err := os.Create(filepath.Join(e.Dir, "table1.txt"))
	if err != nil {
		Warn("descriptive table fallback", err)
		return
	}
	defer f.Close()
	for i := 0; i < t.NumRow(); i++ {
		for _, s := range t.Series {
			fmt.Fprintf(f, "%-24s", s.CellString(i))
		}
		fmt.Fprintln(f)
	}
}

// Contingency writes the 2x2 exposure-by-outcome table.
func (e *Exporter) Contingency(ct *model.Contingency) error {
	f, err := os.Create(filepath.Join(e.Dir, "contingency.tsv"))
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	fmt.Fprintf(f, "%s\\%s\t%s\t%s\n", ct.Exposure, ct.Outcome, ct.ColLevels[0], ct.ColLevels[1])
	for r := 0; r < 2; r++ {
		fmt.Fprintf(f, "%s\t%d\t%d\n", ct.RowLevels[r], ct.Counts[r][0], ct.Counts[r][1])
	}
	return nil
}

// ChiSquare writes the independence test result.
func (e *Exporter) ChiSquare(r model.ChiSquareResult) error {
	f, err := os.Create(filepath.Join(e.Dir, "chisq.tsv"))
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	fmt.Fprintln(f, "statistic\tdf\tp_value\tsimulated\treplicates")
	fmt.Fprintf(f, "%g\t%d\t%g\t%t\t%d\n", r.Stat, r.DF, r.P, r.Simulated, r.Reps)
	return nil
}

// ModelFit writes one fitted model's coefficient table and its summary
// text. Skipped models produce no files.
func (e *Exporter) ModelFit(fit *model.Fit) error {
	if fit.Status != model.Fitted {
		return nil
	}

	f, err := os.Create(filepath.Join(e.Dir, fmt.Sprintf("model_%s.tsv", fit.Spec.Name)))
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	fmt.Fprintln(f, model.TermsTSVHeader)
	for _, t := range fit.Terms {
		fmt.Fprintf(f, "%s\t%g\t%g\t%g\t%g\t%g\t%g\t%g\n",
			t.Name, t.Est, t.SE, t.Z, t.P, t.OR, t.ORLower, t.ORUpper)
	}
	fmt.Fprintf(f, "# n=%d loglike=%g deviance=%g aic=%g\n", fit.N, fit.LogLike, fit.Dev, fit.AIC)
	if len(fit.Dropped) > 0 {
		fmt.Fprintf(f, "# dropped predictors: %v\n", fit.Dropped)
	}

	s, err := os.Create(filepath.Join(e.Dir, fmt.Sprintf("model_%s_summary.txt", fit.Spec.Name)))
	if err != nil {
		return pfx.Err(err)
	}
	defer s.Close()
	fmt.Fprintln(s, fit.Summary)

	return nil
}

// Cohort serializes the final analysis cohort so it can be reloaded
// without rerunning the pipeline.
func (e *Exporter) Cohort(t *frame.Table) error {
	return frame.Save(t, filepath.Join(e.Dir, "cohort.gob.sz"))
}
