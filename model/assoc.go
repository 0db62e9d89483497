package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jasonma1333/BMS2901Project/frame"
)

// Contingency is the 2x2 exposure-by-outcome table underlying the
// bivariable association test.
type Contingency struct {
	Exposure  string
	Outcome   string
	RowLevels [2]string
	ColLevels [2]string
	Counts    [2][2]int
	N         int
}

// ChiSquareResult holds a Pearson chi-squared independence test. When
// the expected-cell-count assumption fails, P comes from a Monte Carlo
// permutation of the outcome labels instead of the asymptotic
// chi-squared distribution, and Simulated is set.
type ChiSquareResult struct {
	Stat      float64
	DF        int
	P         float64
	Simulated bool
	Reps      int
}

// Crosstab tabulates exposure against outcome over the rows where both
// are observed. Both columns must be binary: either two-level factors
// or 0/1 numerics.
func Crosstab(t *frame.Table, exposure, outcome string) (*Contingency, error) {
	ex := t.Col(exposure)
	oc := t.Col(outcome)
	if ex == nil || oc == nil {
		return nil, fmt.Errorf("crosstab: missing column %s or %s", exposure, outcome)
	}

	ct := &Contingency{Exposure: exposure, Outcome: outcome}
	ct.RowLevels = binaryLevels(ex)
	ct.ColLevels = binaryLevels(oc)

	for i := 0; i < t.NumRow(); i++ {
		r, ok := binaryIndex(ex, i)
		if !ok {
			continue
		}
		c, ok := binaryIndex(oc, i)
		if !ok {
			continue
		}
		ct.Counts[r][c]++
		ct.N++
	}

	return ct, nil
}

func binaryLevels(s *frame.Series) [2]string {
	if s.IsFactor() && len(s.Levels) >= 2 {
		return [2]string{s.Levels[0], s.Levels[1]}
	}
	return [2]string{"0", "1"}
}

func binaryIndex(s *frame.Series, i int) (int, bool) {
	if !s.Valid(i) {
		return 0, false
	}
	if s.Kind == frame.Numeric {
		switch s.Floats[i].Float64 {
		case 0:
			return 0, true
		case 1:
			return 1, true
		}
		return 0, false
	}
	if !s.IsFactor() {
		return 0, false
	}
	for k, lv := range s.Levels[:2] {
		if s.Strings[i].String == lv {
			return k, true
		}
	}
	return 0, false
}

// ChiSquare runs the independence test. The asymptotic statistic uses
// the Yates continuity correction, matching the usual treatment of 2x2
// tables; when any expected cell count falls below 5 the asymptotic
// approximation is unreliable, so the p-value is recomputed by fixed
// permutation of the outcome labels using the uncorrected statistic.
func (ct *Contingency) ChiSquare(seed int64, reps int) ChiSquareResult {
	res := ChiSquareResult{DF: 1}
	if ct.N == 0 {
		res.P = math.NaN()
		res.Stat = math.NaN()
		return res
	}

	exp := ct.expected()
	res.Stat = ct.statistic(exp, true)
	res.P = distuv.ChiSquared{K: float64(res.DF)}.Survival(res.Stat)

	low := false
	for _, row := range exp {
		for _, e := range row {
			if e < 5 {
				low = true
			}
		}
	}
	if !low {
		return res
	}

	// Small expected counts: Monte Carlo under the null, conditioning on
	// the observed margins.
	if reps <= 0 {
		reps = 2000
	}
	obs := ct.statistic(exp, false)
	res.Stat = obs
	res.Simulated = true
	res.Reps = reps

	exposures := make([]int, 0, ct.N)
	outcomes := make([]int, 0, ct.N)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			for k := 0; k < ct.Counts[r][c]; k++ {
				exposures = append(exposures, r)
				outcomes = append(outcomes, c)
			}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	hits := 0
	for b := 0; b < reps; b++ {
		rng.Shuffle(len(outcomes), func(i, j int) {
			outcomes[i], outcomes[j] = outcomes[j], outcomes[i]
		})
		var sim Contingency
		sim.N = ct.N
		for i, r := range exposures {
			sim.Counts[r][outcomes[i]]++
		}
		if sim.statistic(sim.expected(), false) >= obs-1e-12 {
			hits++
		}
	}
	res.P = float64(1+hits) / float64(1+reps)

	return res
}

func (ct *Contingency) expected() [2][2]float64 {
	var rowsum, colsum [2]float64
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			rowsum[r] += float64(ct.Counts[r][c])
			colsum[c] += float64(ct.Counts[r][c])
		}
	}
	var exp [2][2]float64
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			exp[r][c] = rowsum[r] * colsum[c] / float64(ct.N)
		}
	}
	return exp
}

func (ct *Contingency) statistic(exp [2][2]float64, yates bool) float64 {
	stat := 0.0
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if exp[r][c] == 0 {
				continue
			}
			d := math.Abs(float64(ct.Counts[r][c]) - exp[r][c])
			if yates {
				d = math.Max(0, d-0.5)
			}
			stat += d * d / exp[r][c]
		}
	}
	return stat
}

// LowExpected reports whether any expected cell count is below 5.
func (ct *Contingency) LowExpected() bool {
	if ct.N == 0 {
		return true
	}
	exp := ct.expected()
	for _, row := range exp {
		for _, e := range row {
			if e < 5 {
				return true
			}
		}
	}
	return false
}
