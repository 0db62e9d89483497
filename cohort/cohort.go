/*
Package cohort applies the study inclusion rules to the derived table
and prepares the analysis-ready cohort. Filtering happens in two
stages: an age rule (adults, with age-missing rows passed through), then
a completeness rule on the primary exposure and outcome. The filtered
cohort is immutable downstream; each model takes its own complete-case
projection of it.
*/

package cohort

import (
	"log"

	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/frame"
)

// Build filters the derived table and converts the binary status
// variables to labelled factors. The returned table is the analysis
// cohort; it may be empty, which downstream steps treat as a degraded
// state rather than an error.
func Build(t *frame.Table, cb *config.Codebook) *frame.Table {
	out := Filter(t)
	log.Printf("cohort: %d of %d subjects retained", out.NumRow(), t.NumRow())

	LabelBinaries(out, cb)
	for _, spec := range cb.Factor {
		Relevel(out, spec.Name, spec.Reference)
	}

	return out
}

// Filter applies the two inclusion stages and returns a new table.
//
// Stage 1 keeps subjects aged at least MinAge, and also subjects with
// missing age: such rows still serve analyses that do not use age, and
// are dropped later by any model whose complete-case rule needs it.
// Stage 2 keeps subjects with both the exposure and the outcome
// observed. Applying Filter to its own output is a no-op.
func Filter(t *frame.Table) *frame.Table {
	age := t.Col(config.AgeVar)

	var keep []int
	for i := 0; i < t.NumRow(); i++ {
		if age == nil || !age.Valid(i) || age.Floats[i].Float64 >= config.MinAge {
			keep = append(keep, i)
		}
	}
	out := t.Take(keep)

	outcome := out.Col(config.OutcomeVar)
	exposure := out.Col(config.ExposureVar)
	keep = keep[:0]
	for i := 0; i < out.NumRow(); i++ {
		if outcome != nil && exposure != nil && outcome.Valid(i) && exposure.Valid(i) {
			keep = append(keep, i)
		}
	}

	return out.Take(keep)
}

// LabelBinaries replaces each 0/1 status column with a two-level factor
// carrying the codebook's human-readable labels, the "no" level first
// as reference. Columns already converted are left alone.
func LabelBinaries(t *frame.Table, cb *config.Codebook) {
	for _, spec := range cb.Binary {
		s := t.Col(spec.Name)
		if s == nil || s.Kind != frame.Numeric || len(spec.Labels) != 2 {
			continue
		}
		vals := make([]null.String, s.Len())
		for i, v := range s.Floats {
			if !v.Valid {
				continue
			}
			if v.Float64 == 1 {
				vals[i] = null.StringFrom(spec.Labels[1])
			} else {
				vals[i] = null.StringFrom(spec.Labels[0])
			}
		}
		levels := append([]string{}, spec.Labels...)
		if err := t.Replace(frame.NewFactor(spec.Name, vals, levels)); err != nil {
			log.Printf("cohort: labelling %s: %v", spec.Name, err)
		}
	}
}

// Relevel moves the given reference level to the front of a factor
// column's level set. Relevelling a column that does not exist, is not
// categorical, or never shows the reference level is a no-op with a
// warning, never fatal.
func Relevel(t *frame.Table, name, ref string) {
	s := t.Col(name)
	if s == nil {
		log.Printf("cohort: cannot relevel %s: no such column", name)
		return
	}
	if !s.IsFactor() {
		log.Printf("cohort: cannot relevel %s: not a categorical column", name)
		return
	}

	observed := false
	for _, v := range s.Strings {
		if v.Valid && v.String == ref {
			observed = true
			break
		}
	}
	if !observed {
		log.Printf("cohort: reference level %q of %s not observed; leaving levels as-is", ref, name)
		return
	}

	for i, lv := range s.Levels {
		if lv == ref {
			copy(s.Levels[1:i+1], s.Levels[:i])
			s.Levels[0] = lv
			return
		}
	}
	log.Printf("cohort: reference level %q is not a declared level of %s", ref, name)
}
