/*
Package derive maps the merged survey table onto the fixed analysis
schema. Every variable is determined purely from its one source field:
recognized yes/no codes become 1/0, recognized category codes become
labelled factor levels, and everything else (refusals, don't-know
codes, explicit missing) becomes missing. Nothing is ever inferred to
be 0, and no rows are dropped at this stage.
*/

package derive

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/frame"
)

// Run derives the analysis variables from the merged table. The output
// has one column per codebook variable plus the subject identifier, and
// exactly as many rows as the input. It fails when no subject has both
// the exposure and the outcome observed, since no analysis can proceed
// from that.
func Run(merged *frame.Table, cb *config.Codebook) (*frame.Table, error) {
	n := merged.NumRow()

	id := merged.Col(config.IDField)
	if id == nil {
		return nil, fmt.Errorf("derive: merged table has no %s column", config.IDField)
	}

	out := &frame.Table{}
	if err := out.Add(id); err != nil {
		return nil, err
	}

	for _, spec := range cb.Binary {
		src := sourceColumn(merged, spec.Source, spec.Name, n)
		if err := out.Add(deriveBinary(spec, src)); err != nil {
			return nil, err
		}
	}

	for _, spec := range cb.Factor {
		src := sourceColumn(merged, spec.Source, spec.Name, n)
		if err := out.Add(deriveFactor(spec, src)); err != nil {
			return nil, err
		}
	}

	for _, spec := range cb.Numeric {
		src := sourceColumn(merged, spec.Source, spec.Name, n)
		if err := out.Add(deriveNumeric(spec, src)); err != nil {
			return nil, err
		}
	}

	if cb.Bands.Name != "" {
		src := out.Col(cb.Bands.Source)
		if src == nil {
			src = frame.AllMissing(cb.Bands.Source, n)
		}
		if err := out.Add(deriveBand(cb.Bands, src)); err != nil {
			return nil, err
		}
	}

	overlap := 0
	outcome := out.Col(config.OutcomeVar)
	exposure := out.Col(config.ExposureVar)
	if outcome != nil && exposure != nil {
		for i := 0; i < n; i++ {
			if outcome.Valid(i) && exposure.Valid(i) {
				overlap++
			}
		}
	}
	log.Printf("derive: %d of %d subjects have both %s and %s observed",
		overlap, n, config.OutcomeVar, config.ExposureVar)
	if overlap == 0 {
		return nil, fmt.Errorf("no overlap between exposure and outcome: cannot proceed")
	}

	return out, nil
}

// sourceColumn looks up a raw field, degrading to an all-missing column
// when the field never made it through the fetch/merge stages.
func sourceColumn(t *frame.Table, source, derived string, n int) *frame.Series {
	if s := t.Col(source); s != nil {
		return s
	}
	log.Printf("derive: source field %s for %s is absent; %s will be entirely missing", source, derived, derived)
	return frame.AllMissing(source, n)
}

func deriveBinary(spec config.BinarySpec, src *frame.Series) *frame.Series {
	vals := make([]null.Float, src.Len())
	for i := range vals {
		code, ok := codeAt(src, i)
		if !ok {
			continue
		}
		switch {
		case inSet(spec.Yes, code):
			vals[i] = null.FloatFrom(1)
		case inSet(spec.No, code):
			vals[i] = null.FloatFrom(0)
		}
	}
	return frame.NewNumericNull(spec.Name, vals)
}

func deriveFactor(spec config.FactorSpec, src *frame.Series) *frame.Series {
	vals := make([]null.String, src.Len())
	observed := make(map[string]bool)
	for i := range vals {
		code, ok := codeAt(src, i)
		if !ok {
			continue
		}
		for j, c := range spec.Codes {
			if strings.EqualFold(c, code) || strings.EqualFold(spec.Labels[j], code) {
				vals[i] = null.StringFrom(spec.Labels[j])
				observed[spec.Labels[j]] = true
				break
			}
		}
	}

	levels := referenceFirst(spec.Name, spec.Labels, spec.Reference, observed)
	return frame.NewFactor(spec.Name, vals, levels)
}

func deriveNumeric(spec config.NumericSpec, src *frame.Series) *frame.Series {
	if src.Kind == frame.Numeric {
		vals := make([]null.Float, src.Len())
		copy(vals, src.Floats)
		return frame.NewNumericNull(spec.Name, vals)
	}

	// Some table mirrors carry numerics as text.
	vals := make([]null.Float, src.Len())
	for i, v := range src.Strings {
		if !v.Valid {
			continue
		}
		if x, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64); err == nil {
			vals[i] = null.FloatFrom(x)
		}
	}
	return frame.NewNumericNull(spec.Name, vals)
}

// deriveBand cuts a continuous measure into right-closed intervals
// (lower, cut1], ..., (cutN, inf). Values at or below the lower bound
// fall outside every interval and are missing.
func deriveBand(spec config.BandSpec, src *frame.Series) *frame.Series {
	vals := make([]null.String, src.Len())
	observed := make(map[string]bool)
	for i := range vals {
		if src.Kind != frame.Numeric || !src.Floats[i].Valid {
			continue
		}
		v := src.Floats[i].Float64
		if v <= spec.Lower {
			continue
		}
		k := len(spec.Cuts)
		for j, cut := range spec.Cuts {
			if v <= cut {
				k = j
				break
			}
		}
		vals[i] = null.StringFrom(spec.Labels[k])
		observed[spec.Labels[k]] = true
	}

	levels := referenceFirst(spec.Name, spec.Labels, spec.Reference, observed)
	return frame.NewFactor(spec.Name, vals, levels)
}

// referenceFirst orders the level set with the reference level first.
// When the nominal reference never occurs in the data the assignment is
// skipped, a degraded state worth a warning rather than an error.
func referenceFirst(name string, labels []string, ref string, observed map[string]bool) []string {
	levels := append([]string{}, labels...)
	if ref == "" {
		return levels
	}
	if !observed[ref] {
		log.Printf("derive: reference level %q of %s not observed; keeping declared level order", ref, name)
		return levels
	}
	for i, lv := range levels {
		if lv == ref {
			copy(levels[1:i+1], levels[:i])
			levels[0] = lv
			break
		}
	}
	return levels
}

// codeAt renders the raw survey response at row i as a comparable code
// string, tolerating both numeric codes and textual labels.
func codeAt(s *frame.Series, i int) (string, bool) {
	if s.Kind == frame.Numeric {
		if !s.Floats[i].Valid {
			return "", false
		}
		return strconv.FormatFloat(s.Floats[i].Float64, 'g', -1, 64), true
	}
	if !s.Strings[i].Valid {
		return "", false
	}
	v := strings.TrimSpace(s.Strings[i].String)
	if v == "" {
		return "", false
	}
	return v, true
}

func inSet(set []string, code string) bool {
	for _, c := range set {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
