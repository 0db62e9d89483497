/*
Package frame is a small column-oriented data container for the survey
tables used in this project.  Columns carry explicit missingness through
null-aware scalar types, and categorical columns carry an ordered level
set whose first entry is the regression reference.
*/

package frame

import (
	"fmt"
	"strconv"

	"gopkg.in/guregu/null.v3"
)

// Kind is the logical type of a Series.
type Kind int

const (
	Numeric Kind = iota
	Text
)

// Series is one named column. Numeric columns populate Floats, text
// columns populate Strings. A non-nil Levels slice marks the column as
// categorical; levels are ordered and the first is the reference.
type Series struct {
	Name    string
	Kind    Kind
	Floats  []null.Float
	Strings []null.String
	Levels  []string
}

// NewNumeric builds a numeric Series from parallel value/missing slices,
// following the values-plus-missing-mask layout used by statistical file
// readers.
func NewNumeric(name string, vals []float64, missing []bool) *Series {
	fl := make([]null.Float, len(vals))
	for i, v := range vals {
		if missing != nil && missing[i] {
			continue
		}
		fl[i] = null.FloatFrom(v)
	}
	return &Series{Name: name, Kind: Numeric, Floats: fl}
}

// NewNumericNull builds a numeric Series directly from null floats.
func NewNumericNull(name string, vals []null.Float) *Series {
	return &Series{Name: name, Kind: Numeric, Floats: vals}
}

// NewText builds a text Series.
func NewText(name string, vals []null.String) *Series {
	return &Series{Name: name, Kind: Text, Strings: vals}
}

// NewFactor builds a categorical Series with the given ordered level set.
func NewFactor(name string, vals []null.String, levels []string) *Series {
	return &Series{Name: name, Kind: Text, Strings: vals, Levels: levels}
}

// AllMissing builds a numeric Series of n missing values. Used when a
// requested source field was absent so that the column is present but
// entirely null.
func AllMissing(name string, n int) *Series {
	return &Series{Name: name, Kind: Numeric, Floats: make([]null.Float, n)}
}

func (s *Series) Len() int {
	if s.Kind == Numeric {
		return len(s.Floats)
	}
	return len(s.Strings)
}

// IsFactor reports whether the column carries a categorical level set.
func (s *Series) IsFactor() bool {
	return s.Kind == Text && len(s.Levels) > 0
}

// Valid reports whether row i holds an observed (non-missing) value.
func (s *Series) Valid(i int) bool {
	if s.Kind == Numeric {
		return s.Floats[i].Valid
	}
	return s.Strings[i].Valid
}

// Take returns a new Series containing the given rows, in order.
func (s *Series) Take(idx []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	if s.Levels != nil {
		out.Levels = append([]string{}, s.Levels...)
	}
	if s.Kind == Numeric {
		out.Floats = make([]null.Float, len(idx))
		for j, i := range idx {
			out.Floats[j] = s.Floats[i]
		}
		return out
	}
	out.Strings = make([]null.String, len(idx))
	for j, i := range idx {
		out.Strings[j] = s.Strings[i]
	}
	return out
}

// ObservedLevels returns the factor levels that actually occur in the
// data, preserving the declared level order (unused levels dropped).
func (s *Series) ObservedLevels() []string {
	if !s.IsFactor() {
		return nil
	}
	seen := make(map[string]bool)
	for _, v := range s.Strings {
		if v.Valid {
			seen[v.String] = true
		}
	}
	var out []string
	for _, lv := range s.Levels {
		if seen[lv] {
			out = append(out, lv)
		}
	}
	return out
}

// DistinctObserved counts the distinct non-missing values in the column.
func (s *Series) DistinctObserved() int {
	if s.Kind == Numeric {
		seen := make(map[float64]bool)
		for _, v := range s.Floats {
			if v.Valid {
				seen[v.Float64] = true
			}
		}
		return len(seen)
	}
	seen := make(map[string]bool)
	for _, v := range s.Strings {
		if v.Valid {
			seen[v.String] = true
		}
	}
	return len(seen)
}

// CellString renders row i for tabular export. Missing values render as
// the empty string, which plays better with downstream table loaders.
func (s *Series) CellString(i int) string {
	if s.Kind == Numeric {
		if !s.Floats[i].Valid {
			return ""
		}
		return strconv.FormatFloat(s.Floats[i].Float64, 'g', -1, 64)
	}
	if !s.Strings[i].Valid {
		return ""
	}
	return s.Strings[i].String
}

// Table is an ordered collection of equal-length Series.
type Table struct {
	Series []*Series
}

// New assembles a Table, requiring all columns to have the same length.
func New(series ...*Series) (*Table, error) {
	if len(series) > 0 {
		n := series[0].Len()
		for _, s := range series[1:] {
			if s.Len() != n {
				return nil, fmt.Errorf("frame: column %s has %d rows, want %d", s.Name, s.Len(), n)
			}
		}
	}
	return &Table{Series: series}, nil
}

func (t *Table) NumRow() int {
	if len(t.Series) == 0 {
		return 0
	}
	return t.Series[0].Len()
}

func (t *Table) NumCol() int { return len(t.Series) }

func (t *Table) Names() []string {
	names := make([]string, len(t.Series))
	for i, s := range t.Series {
		names[i] = s.Name
	}
	return names
}

// Col returns the named column, or nil if it does not exist.
func (t *Table) Col(name string) *Series {
	for _, s := range t.Series {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (t *Table) HasCol(name string) bool { return t.Col(name) != nil }

// Add appends a column, enforcing the shared row count.
func (t *Table) Add(s *Series) error {
	if len(t.Series) > 0 && s.Len() != t.NumRow() {
		return fmt.Errorf("frame: column %s has %d rows, want %d", s.Name, s.Len(), t.NumRow())
	}
	t.Series = append(t.Series, s)
	return nil
}

// Replace swaps in a column by name, appending if absent.
func (t *Table) Replace(s *Series) error {
	for i, old := range t.Series {
		if old.Name == s.Name {
			if s.Len() != t.NumRow() {
				return fmt.Errorf("frame: column %s has %d rows, want %d", s.Name, s.Len(), t.NumRow())
			}
			t.Series[i] = s
			return nil
		}
	}
	return t.Add(s)
}

// Take returns a new Table containing the given rows, in order.
func (t *Table) Take(idx []int) *Table {
	out := &Table{Series: make([]*Series, len(t.Series))}
	for i, s := range t.Series {
		out.Series[i] = s.Take(idx)
	}
	return out
}

// Project returns a new Table holding only the named columns, in the
// requested order. Unknown names are an error.
func (t *Table) Project(names ...string) (*Table, error) {
	out := &Table{}
	for _, na := range names {
		s := t.Col(na)
		if s == nil {
			return nil, fmt.Errorf("frame: no column named %s", na)
		}
		out.Series = append(out.Series, s)
	}
	return out, nil
}

// CompleteCases returns the row indices with no missing value in any of
// the named columns.
func (t *Table) CompleteCases(names []string) ([]int, error) {
	cols := make([]*Series, len(names))
	for i, na := range names {
		s := t.Col(na)
		if s == nil {
			return nil, fmt.Errorf("frame: no column named %s", na)
		}
		cols[i] = s
	}
	var idx []int
	for i := 0; i < t.NumRow(); i++ {
		ok := true
		for _, s := range cols {
			if !s.Valid(i) {
				ok = false
				break
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}
