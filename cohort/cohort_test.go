package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/frame"
)

// derivedTable builds a derive-stage table: numeric 0/1 statuses plus
// age.
func derivedTable(t *testing.T, age []float64, ageMiss []bool, chd, gout []float64, chdMiss, goutMiss []bool) *frame.Table {
	t.Helper()
	n := len(age)
	ids := make([]float64, n)
	for i := range ids {
		ids[i] = float64(i + 1)
	}
	tab, err := frame.New(
		frame.NewNumeric("SEQN", ids, nil),
		frame.NewNumeric("age", age, ageMiss),
		frame.NewNumeric("chd", chd, chdMiss),
		frame.NewNumeric("gout", gout, goutMiss),
	)
	require.NoError(t, err)
	return tab
}

func TestFilterTwoStages(t *testing.T) {
	tab := derivedTable(t,
		[]float64{34, 17, 0, 52, 80},
		[]bool{false, false, true, false, false},
		[]float64{1, 1, 0, 1, 0},
		[]float64{0, 1, 1, 0, 0},
		[]bool{false, false, false, true, false},
		nil,
	)

	out := Filter(tab)

	// Subject 2 fails the age rule; subject 3 has missing age and
	// passes stage 1; subject 4 fails outcome completeness.
	require.Equal(t, 3, out.NumRow())
	ids := out.Col("SEQN")
	assert.Equal(t, 1.0, ids.Floats[0].Float64)
	assert.Equal(t, 3.0, ids.Floats[1].Float64)
	assert.Equal(t, 5.0, ids.Floats[2].Float64)
}

func TestFilterIdempotent(t *testing.T) {
	tab := derivedTable(t,
		[]float64{34, 17, 52, 61},
		nil,
		[]float64{1, 0, 1, 0},
		[]float64{0, 1, 1, 0},
		[]bool{false, false, false, true},
		nil,
	)

	once := Filter(tab)
	twice := Filter(once)

	require.Equal(t, once.NumRow(), twice.NumRow())
	require.Equal(t, once.Names(), twice.Names())
	for i, s := range once.Series {
		g := twice.Series[i]
		if s.Kind == frame.Numeric {
			assert.Equal(t, s.Floats, g.Floats, "column %s", s.Name)
		} else {
			assert.Equal(t, s.Strings, g.Strings, "column %s", s.Name)
		}
	}
}

func TestLabelBinaries(t *testing.T) {
	cb, err := config.Load()
	require.NoError(t, err)

	tab := derivedTable(t,
		[]float64{30, 40},
		nil,
		[]float64{1, 0},
		[]float64{0, 1},
		nil, nil,
	)

	LabelBinaries(tab, cb)

	chd := tab.Col("chd")
	require.True(t, chd.IsFactor())
	assert.Equal(t, []string{"no", "yes"}, chd.Levels)
	assert.Equal(t, "yes", chd.Strings[0].String)
	assert.Equal(t, "no", chd.Strings[1].String)

	// Applying it again must not disturb the converted columns.
	LabelBinaries(tab, cb)
	assert.Equal(t, "yes", tab.Col("chd").Strings[0].String)
}

func TestRelevelDegradedCases(t *testing.T) {
	tab, err := frame.New(
		frame.NewNumeric("age", []float64{30}, nil),
		frame.NewFactor("race", []null.String{null.StringFrom("black")},
			[]string{"white", "black"}),
	)
	require.NoError(t, err)

	// No such column, non-categorical column, unobserved reference:
	// all warning no-ops.
	Relevel(tab, "ghost", "white")
	Relevel(tab, "age", "white")
	Relevel(tab, "race", "white")
	assert.Equal(t, []string{"white", "black"}, tab.Col("race").Levels)

	// Observed reference is moved to the front.
	Relevel(tab, "race", "black")
	assert.Equal(t, []string{"black", "white"}, tab.Col("race").Levels)
}
