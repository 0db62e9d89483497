/*
Package model fits the bank of logistic regression specifications over
the analysis cohort. Each model is described by one declarative Spec
consumed by a single validate-then-fit routine; the per-model guards
(required columns, complete-case sample size, outcome variation, factor
level cardinality) live in that one place instead of being repeated
ahead of every fit.
*/

package model

import (
	"strings"

	"github.com/jasonma1333/BMS2901Project/config"
)

// Status tracks a model through its lifecycle. A model moves Pending →
// Validated → Fitted, or Pending → Skipped when a validation gate
// fails. Skipped is terminal and not an error.
type Status int

const (
	Pending Status = iota
	Skipped
	Validated
	Fitted
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Skipped:
		return "skipped"
	case Validated:
		return "validated"
	case Fitted:
		return "fitted"
	}
	return "unknown"
}

// SubsetRule restricts a model to the rows of the cohort where a factor
// column takes one level (e.g. the male stratum).
type SubsetRule struct {
	Column string
	Level  string
}

// Spec is one model specification. Predictors are column names; a name
// of the form "a*b" adds the a×b interaction (both main effects must be
// listed separately). MinN is the minimum complete-case sample size.
// DropSingleLevel selects the primary-model policy of excluding a
// single-level categorical predictor instead of skipping the model.
type Spec struct {
	Name            string
	Outcome         string
	Predictors      []string
	Subset          *SubsetRule
	MinN            int
	DropSingleLevel bool
}

// Term is one fitted coefficient with its Wald statistics on both the
// log-odds and odds-ratio scales.
type Term struct {
	Name    string
	Est     float64
	SE      float64
	Z       float64
	P       float64
	OR      float64
	ORLower float64
	ORUpper float64
}

// Fit is the outcome of running one Spec: either a fitted model or a
// terminal skip with its reason. Consumers check Status, never variable
// names.
type Fit struct {
	Spec    Spec
	Status  Status
	Reason  string
	N       int
	Dropped []string
	Terms   []Term
	LogLike float64
	Dev     float64
	AIC     float64
	Summary string
}

// Bank returns the seven model specifications of the analysis, in the
// order they are reported.
func Bank() []Spec {
	adjusted := []string{
		config.ExposureVar, config.AgeVar, "gender", "race",
		"bmi", "diabetes", "smoking", "hypertension",
	}

	return []Spec{
		{
			Name:       "unadjusted",
			Outcome:    config.OutcomeVar,
			Predictors: []string{config.ExposureVar},
			MinN:       11,
		},
		{
			Name:            "adjusted",
			Outcome:         config.OutcomeVar,
			Predictors:      adjusted,
			MinN:            20,
			DropSingleLevel: true,
		},
		{
			Name:       "interaction",
			Outcome:    config.OutcomeVar,
			Predictors: append(append([]string{}, adjusted...), config.ExposureVar+"*gender"),
			MinN:       20,
		},
		{
			Name:       "stratified_male",
			Outcome:    config.OutcomeVar,
			Predictors: without(adjusted, "gender"),
			Subset:     &SubsetRule{Column: "gender", Level: "male"},
			MinN:       10,
		},
		{
			Name:       "stratified_female",
			Outcome:    config.OutcomeVar,
			Predictors: without(adjusted, "gender"),
			Subset:     &SubsetRule{Column: "gender", Level: "female"},
			MinN:       10,
		},
		{
			Name:       "age_banded",
			Outcome:    config.OutcomeVar,
			Predictors: replace(adjusted, config.AgeVar, "age_group"),
			MinN:       10,
		},
		{
			Name:       "gout_diabetes",
			Outcome:    "diabetes",
			Predictors: []string{config.ExposureVar, config.AgeVar, "gender", "race", "bmi"},
			MinN:       10,
		},
	}
}

// baseColumns lists the cohort columns a predictor term touches,
// splitting interactions into their parts.
func baseColumns(term string) []string {
	if !strings.Contains(term, "*") {
		return []string{term}
	}
	var out []string
	for _, p := range strings.Split(term, "*") {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func without(xs []string, drop string) []string {
	var out []string
	for _, x := range xs {
		if x != drop {
			out = append(out, x)
		}
	}
	return out
}

func replace(xs []string, old, new string) []string {
	out := append([]string{}, xs...)
	for i, x := range out {
		if x == old {
			out[i] = new
		}
	}
	return out
}
