package model

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jasonma1333/BMS2901Project/frame"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Run validates one model specification against the cohort and, when
// every gate passes, fits it by maximum-likelihood logistic regression
// over its complete-case subset. The cohort itself is never modified.
func Run(cohort *frame.Table, sp Spec) *Fit {
	f := &Fit{Spec: sp, Status: Pending}

	// Gate 1: every referenced column must exist.
	required := []string{sp.Outcome}
	for _, term := range sp.Predictors {
		required = append(required, baseColumns(term)...)
	}
	if sp.Subset != nil {
		required = append(required, sp.Subset.Column)
	}
	for _, na := range dedup(required) {
		if !cohort.HasCol(na) {
			return f.skip(fmt.Sprintf("column %s not present in cohort", na))
		}
	}

	rows := subsetRows(cohort, sp.Subset)

	preds := append([]string{}, sp.Predictors...)
	cc := completeCases(cohort, rows, sp.Outcome, preds)

	// Gate 2: minimum complete-case sample size.
	if len(cc) < sp.MinN {
		return f.skip(fmt.Sprintf("complete cases %d below minimum %d", len(cc), sp.MinN))
	}

	// Gate 3: the outcome must vary.
	if distinct(cohort.Col(sp.Outcome), cc) < 2 {
		return f.skip(fmt.Sprintf("outcome %s has fewer than 2 observed values", sp.Outcome))
	}

	// Gate 4: every categorical predictor needs at least 2 observed
	// levels once unused levels are dropped. The primary adjusted model
	// excludes the offending predictor and carries on; every other
	// variant skips entirely.
	for {
		bad := singleLevelFactor(cohort, cc, preds)
		if bad == "" {
			break
		}
		if !sp.DropSingleLevel {
			return f.skip(fmt.Sprintf("categorical predictor %s has a single observed level", bad))
		}
		log.Printf("model %s: dropping %s (single observed level)", sp.Name, bad)
		f.Dropped = append(f.Dropped, bad)
		preds = dropTermsUsing(preds, bad)
		if len(preds) == 0 {
			return f.skip("no predictors remain after dropping single-level factors")
		}
		// The complete-case subset can only grow after a drop.
		cc = completeCases(cohort, rows, sp.Outcome, preds)
	}

	f.Status = Validated
	f.N = len(cc)

	if err := f.fit(cohort, cc, preds); err != nil {
		// A failed solve (e.g. complete separation) degrades to a skip;
		// nothing downstream should consume a half-fitted model.
		return f.skip(fmt.Sprintf("fit failed: %v", err))
	}

	f.Status = Fitted
	return f
}

func (f *Fit) skip(reason string) *Fit {
	f.Status = Skipped
	f.Reason = reason
	log.Printf("model %s: skipped: %s", f.Spec.Name, reason)
	return f
}

// fit builds the design matrix and runs the GLM with a binomial family
// and logit link.
func (f *Fit) fit(cohort *frame.Table, cc []int, preds []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	y, err := encodeOutcome(cohort.Col(f.Spec.Outcome), cc)
	if err != nil {
		return err
	}

	icept := make([]float64, len(cc))
	for i := range icept {
		icept[i] = 1
	}

	cols := []namedCol{{name: "icept", vals: icept}}
	for _, term := range preds {
		expanded, err := expandTerm(cohort, cc, term)
		if err != nil {
			return err
		}
		cols = append(cols, expanded...)
	}

	data := [][]float64{y}
	names := []string{f.Spec.Outcome}
	var xnames []string
	for _, c := range cols {
		data = append(data, c.vals)
		names = append(names, c.name)
		xnames = append(xnames, c.name)
	}

	da := statmodel.NewDataset(data, names)

	c := glm.DefaultConfig()
	c.Family = glm.NewFamily(glm.BinomialFamily)
	md, err := glm.NewGLM(da, f.Spec.Outcome, xnames, c)
	if err != nil {
		return err
	}
	rslt := md.Fit()

	params := rslt.Params()
	se := rslt.StdErr()
	zq := stdNormal.Quantile(0.975)
	for i, na := range xnames {
		t := Term{Name: na, Est: params[i], SE: se[i]}
		if se[i] > 0 {
			t.Z = t.Est / t.SE
			t.P = 2 * stdNormal.CDF(-math.Abs(t.Z))
		}
		t.OR = math.Exp(t.Est)
		t.ORLower = math.Exp(t.Est - zq*t.SE)
		t.ORUpper = math.Exp(t.Est + zq*t.SE)
		f.Terms = append(f.Terms, t)
	}

	f.LogLike = rslt.LogLike()
	f.Dev = -2 * f.LogLike
	f.AIC = f.Dev + 2*float64(len(xnames))

	smry := rslt.Summary().SetScale(math.Exp, "Parameters are shown as odds ratios")
	f.Summary = smry.String()

	return nil
}

type namedCol struct {
	name string
	vals []float64
}

// expandTerm turns one predictor term into design columns over the
// complete-case rows: a continuous column passes through, a factor
// becomes treatment-coded indicators against its reference level, and
// an interaction becomes the products of its parts' columns.
func expandTerm(t *frame.Table, cc []int, term string) ([]namedCol, error) {
	parts := baseColumns(term)
	if len(parts) == 1 {
		return expandColumn(t.Col(parts[0]), cc)
	}

	out := []namedCol{{name: "", vals: ones(len(cc))}}
	for _, p := range parts {
		cols, err := expandColumn(t.Col(p), cc)
		if err != nil {
			return nil, err
		}
		var next []namedCol
		for _, a := range out {
			for _, b := range cols {
				prod := make([]float64, len(cc))
				for i := range prod {
					prod[i] = a.vals[i] * b.vals[i]
				}
				name := b.name
				if a.name != "" {
					name = a.name + ":" + b.name
				}
				next = append(next, namedCol{name: name, vals: prod})
			}
		}
		out = next
	}
	return out, nil
}

func expandColumn(s *frame.Series, cc []int) ([]namedCol, error) {
	if s.Kind == frame.Numeric {
		vals := make([]float64, len(cc))
		for i, r := range cc {
			vals[i] = s.Floats[r].Float64
		}
		return []namedCol{{name: s.Name, vals: vals}}, nil
	}
	if !s.IsFactor() {
		return nil, fmt.Errorf("column %s is text but carries no level set", s.Name)
	}

	sub := s.Take(cc)
	levels := sub.ObservedLevels()
	if len(levels) < 2 {
		return nil, fmt.Errorf("factor %s has %d observed levels", s.Name, len(levels))
	}

	// First observed level is the baseline; levels keep the declared
	// order, so a relevelled reference stays the baseline when present.
	var out []namedCol
	for _, lv := range levels[1:] {
		vals := make([]float64, len(cc))
		for i, r := range cc {
			if s.Strings[r].Valid && s.Strings[r].String == lv {
				vals[i] = 1
			}
		}
		out = append(out, namedCol{name: fmt.Sprintf("%s=%s", s.Name, lv), vals: vals})
	}
	return out, nil
}

// encodeOutcome renders the outcome as 0/1 over the complete-case rows.
func encodeOutcome(s *frame.Series, cc []int) ([]float64, error) {
	vals := make([]float64, len(cc))
	if s.Kind == frame.Numeric {
		for i, r := range cc {
			v := s.Floats[r].Float64
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("outcome %s has non-binary value %v", s.Name, v)
			}
			vals[i] = v
		}
		return vals, nil
	}
	if !s.IsFactor() {
		return nil, fmt.Errorf("outcome %s is text but carries no level set", s.Name)
	}
	for i, r := range cc {
		if s.Strings[r].String != s.Levels[0] {
			vals[i] = 1
		}
	}
	return vals, nil
}

func subsetRows(t *frame.Table, rule *SubsetRule) []int {
	n := t.NumRow()
	if rule == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	s := t.Col(rule.Column)
	var out []int
	for i := 0; i < n; i++ {
		if s.Kind == frame.Text && s.Strings[i].Valid && s.Strings[i].String == rule.Level {
			out = append(out, i)
		}
	}
	return out
}

// completeCases restricts rows to those with no missing value in the
// outcome or any predictor column.
func completeCases(t *frame.Table, rows []int, outcome string, preds []string) []int {
	cols := []*frame.Series{t.Col(outcome)}
	for _, term := range preds {
		for _, na := range baseColumns(term) {
			cols = append(cols, t.Col(na))
		}
	}

	var out []int
	for _, r := range rows {
		ok := true
		for _, s := range cols {
			if !s.Valid(r) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func distinct(s *frame.Series, rows []int) int {
	return s.Take(rows).DistinctObserved()
}

// singleLevelFactor returns the first categorical predictor with fewer
// than 2 observed levels in the complete-case rows, or "".
func singleLevelFactor(t *frame.Table, cc []int, preds []string) string {
	seen := make(map[string]bool)
	for _, term := range preds {
		for _, na := range baseColumns(term) {
			if seen[na] {
				continue
			}
			seen[na] = true
			s := t.Col(na)
			if s.IsFactor() && len(s.Take(cc).ObservedLevels()) < 2 {
				return na
			}
		}
	}
	return ""
}

// dropTermsUsing removes every predictor term that references the named
// column, including interactions built on it.
func dropTermsUsing(preds []string, name string) []string {
	var out []string
	for _, term := range preds {
		uses := false
		for _, na := range baseColumns(term) {
			if na == name {
				uses = true
				break
			}
		}
		if !uses {
			out = append(out, term)
		}
	}
	return out
}

func dedup(xs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// TermsTSVHeader is the column header shared by the coefficient tables.
var TermsTSVHeader = strings.Join([]string{
	"term", "estimate", "std_error", "z", "p", "odds_ratio", "or_lower95", "or_upper95",
}, "\t")
