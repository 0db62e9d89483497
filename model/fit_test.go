package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/frame"
)

// testCohort builds a cohort with a 0/1 outcome y, a continuous x and a
// two-level factor g. The outcome pattern is deliberately not separable
// by either predictor so the solver converges.
func testCohort(t *testing.T, n int, xMiss []bool, gLevel func(i int) string) *frame.Table {
	t.Helper()
	y := make([]float64, n)
	x := make([]float64, n)
	g := make([]null.String, n)
	for i := 0; i < n; i++ {
		y[i] = float64((i / 2) % 2)
		x[i] = float64(i%7) + 0.5
		lv := "a"
		if gLevel != nil {
			lv = gLevel(i)
		} else if i%2 == 1 {
			lv = "b"
		}
		g[i] = null.StringFrom(lv)
	}
	tab, err := frame.New(
		frame.NewNumeric("y", y, nil),
		frame.NewNumeric("x", x, xMiss),
		frame.NewFactor("g", g, []string{"a", "b"}),
	)
	require.NoError(t, err)
	return tab
}

func TestRunFitsAtThreshold(t *testing.T) {
	tab := testCohort(t, 10, nil, nil)
	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"x"}, MinN: 10})
	require.Equal(t, Fitted, f.Status, "reason: %s", f.Reason)
	assert.Equal(t, 10, f.N)

	names := make([]string, len(f.Terms))
	for i, term := range f.Terms {
		names[i] = term.Name
	}
	assert.Equal(t, []string{"icept", "x"}, names)
	for _, term := range f.Terms {
		assert.False(t, term.SE <= 0, "term %s has no standard error", term.Name)
		assert.LessOrEqual(t, term.ORLower, term.OR)
		assert.LessOrEqual(t, term.OR, term.ORUpper)
	}
	assert.Less(t, f.LogLike, 0.0)
	assert.Greater(t, f.AIC, 0.0)
}

func TestRunSkipsBelowThreshold(t *testing.T) {
	tab := testCohort(t, 9, nil, nil)
	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"x"}, MinN: 10})
	require.Equal(t, Skipped, f.Status)
	assert.Contains(t, f.Reason, "below minimum")
	assert.Empty(t, f.Terms)
}

func TestRunCompleteCaseCounting(t *testing.T) {
	// 12 rows but 3 missing x: the complete-case subset (9) is what the
	// threshold is measured against.
	miss := make([]bool, 12)
	miss[0], miss[5], miss[10] = true, true, true
	tab := testCohort(t, 12, miss, nil)

	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"x"}, MinN: 10})
	require.Equal(t, Skipped, f.Status)
	assert.Contains(t, f.Reason, "9 below minimum 10")
}

func TestRunSkipsMissingColumn(t *testing.T) {
	tab := testCohort(t, 12, nil, nil)
	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"nope"}, MinN: 10})
	require.Equal(t, Skipped, f.Status)
	assert.Contains(t, f.Reason, "nope")
}

func TestRunSkipsConstantOutcome(t *testing.T) {
	tab := testCohort(t, 12, nil, nil)
	zero := make([]null.Float, 12)
	for i := range zero {
		zero[i] = null.FloatFrom(0)
	}
	require.NoError(t, tab.Replace(frame.NewNumericNull("y", zero)))

	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"x"}, MinN: 10})
	require.Equal(t, Skipped, f.Status)
	assert.Contains(t, f.Reason, "fewer than 2 observed values")
}

func TestSingleLevelFactorSkipsModel(t *testing.T) {
	tab := testCohort(t, 20, nil, func(i int) string { return "a" })
	f := Run(tab, Spec{Name: "m", Outcome: "y", Predictors: []string{"x", "g"}, MinN: 10})
	require.Equal(t, Skipped, f.Status)
	assert.Contains(t, f.Reason, "single observed level")
}

func TestSingleLevelFactorDroppedFromPrimary(t *testing.T) {
	tab := testCohort(t, 20, nil, func(i int) string { return "a" })
	f := Run(tab, Spec{
		Name: "adjusted", Outcome: "y", Predictors: []string{"x", "g"},
		MinN: 10, DropSingleLevel: true,
	})
	require.Equal(t, Fitted, f.Status, "reason: %s", f.Reason)
	assert.Equal(t, []string{"g"}, f.Dropped)
	for _, term := range f.Terms {
		assert.False(t, strings.HasPrefix(term.Name, "g="), "dropped factor must not appear: %s", term.Name)
	}
}

func TestFactorAndInteractionTerms(t *testing.T) {
	tab := testCohort(t, 40, nil, nil)
	f := Run(tab, Spec{
		Name: "inter", Outcome: "y",
		Predictors: []string{"x", "g", "x*g"},
		MinN:       20,
	})
	require.Equal(t, Fitted, f.Status, "reason: %s", f.Reason)

	var names []string
	for _, term := range f.Terms {
		names = append(names, term.Name)
	}
	assert.Equal(t, []string{"icept", "x", "g=b", "x:g=b"}, names)
}

func TestStratifiedSubset(t *testing.T) {
	tab := testCohort(t, 40, nil, nil)
	f := Run(tab, Spec{
		Name: "stratum_a", Outcome: "y", Predictors: []string{"x"},
		Subset: &SubsetRule{Column: "g", Level: "a"},
		MinN:   10,
	})
	require.Equal(t, Fitted, f.Status, "reason: %s", f.Reason)
	assert.Equal(t, 20, f.N, "only the a stratum is fitted")
}

func TestBankShape(t *testing.T) {
	bank := Bank()
	require.Len(t, bank, 7)
	assert.Equal(t, "unadjusted", bank[0].Name)
	assert.Equal(t, 11, bank[0].MinN, "unadjusted requires more than 10 complete cases")
	assert.True(t, bank[1].DropSingleLevel, "only the primary adjusted model drops single-level factors")
	for _, sp := range bank[2:] {
		assert.False(t, sp.DropSingleLevel, "%s must skip, not drop", sp.Name)
	}
	assert.Equal(t, "diabetes", bank[6].Outcome)
}
