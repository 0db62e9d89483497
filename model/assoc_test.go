package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/frame"
)

// contingencyTable materializes a 2x2 count layout as a labelled cohort
// so Crosstab has something to tabulate.
func contingencyTable(t *testing.T, counts [2][2]int) *frame.Table {
	t.Helper()
	var exp, out []null.String
	levels := []string{"no", "yes"}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			for k := 0; k < counts[r][c]; k++ {
				exp = append(exp, null.StringFrom(levels[r]))
				out = append(out, null.StringFrom(levels[c]))
			}
		}
	}
	tab, err := frame.New(
		frame.NewFactor("gout", exp, levels),
		frame.NewFactor("chd", out, levels),
	)
	require.NoError(t, err)
	return tab
}

func TestCrosstabCounts(t *testing.T) {
	counts := [2][2]int{{30, 10}, {10, 30}}
	tab := contingencyTable(t, counts)

	ct, err := Crosstab(tab, "gout", "chd")
	require.NoError(t, err)

	assert.Equal(t, counts, ct.Counts)
	assert.Equal(t, 80, ct.N)
	assert.Equal(t, [2]string{"no", "yes"}, ct.RowLevels)
}

func TestCrosstabSkipsMissing(t *testing.T) {
	tab := contingencyTable(t, [2][2]int{{2, 2}, {2, 2}})
	gout := tab.Col("gout")
	gout.Strings[0] = null.String{}

	ct, err := Crosstab(tab, "gout", "chd")
	require.NoError(t, err)
	assert.Equal(t, 7, ct.N, "rows with a missing cell are dropped pairwise")
}

func TestChiSquareAsymptotic(t *testing.T) {
	ct, err := Crosstab(contingencyTable(t, [2][2]int{{30, 10}, {10, 30}}), "gout", "chd")
	require.NoError(t, err)

	res := ct.ChiSquare(1, 2000)
	assert.False(t, res.Simulated, "all expected cells are 20")
	assert.Equal(t, 1, res.DF)
	// Yates-corrected statistic: 4 * 9.5^2 / 20.
	assert.InDelta(t, 18.05, res.Stat, 1e-9)
	assert.Less(t, res.P, 0.001)
}

func TestChiSquareIndependence(t *testing.T) {
	ct, err := Crosstab(contingencyTable(t, [2][2]int{{20, 20}, {20, 20}}), "gout", "chd")
	require.NoError(t, err)

	res := ct.ChiSquare(1, 2000)
	assert.False(t, res.Simulated)
	assert.InDelta(t, 0, res.Stat, 1e-12)
	assert.Greater(t, res.P, 0.9)
}

func TestChiSquareSimulatedOnLowCounts(t *testing.T) {
	ct, err := Crosstab(contingencyTable(t, [2][2]int{{1, 1}, {1, 1}}), "gout", "chd")
	require.NoError(t, err)
	require.True(t, ct.LowExpected())

	res := ct.ChiSquare(1, 2000)
	assert.True(t, res.Simulated)
	assert.Equal(t, 2000, res.Reps)
	// The observed uncorrected statistic is 0, so every permutation is at
	// least as extreme.
	assert.Equal(t, 1.0, res.P)
}

func TestChiSquareDeterministicSeed(t *testing.T) {
	ct, err := Crosstab(contingencyTable(t, [2][2]int{{4, 1}, {1, 4}}), "gout", "chd")
	require.NoError(t, err)

	a := ct.ChiSquare(7, 500)
	b := ct.ChiSquare(7, 500)
	require.True(t, a.Simulated)
	assert.Equal(t, a.P, b.P, "same seed, same p-value")
	assert.Greater(t, a.P, 0.0)
	assert.LessOrEqual(t, a.P, 1.0)
}
