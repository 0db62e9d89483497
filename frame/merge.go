package frame

import (
	"errors"
	"fmt"
	"log"

	"gopkg.in/guregu/null.v3"
)

// ErrNoInput is returned by Merge when there are no tables to merge.
// The pipeline cannot proceed past this condition.
var ErrNoInput = errors.New("no input data")

// Merge left-reduces the given tables into one wide table joined on the
// identifier column. The output identifier set is the union of the input
// identifier sets in first-appearance order (a full outer join): a
// subject absent from one table keeps its row, with that table's columns
// null. Every input must carry the identifier column.
func Merge(id string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrNoInput
	}

	for k, t := range tables {
		s := t.Col(id)
		if s == nil {
			return nil, fmt.Errorf("merge precondition: identifier missing (table %d has no column %s)", k, id)
		}
		if s.Kind != Numeric {
			return nil, fmt.Errorf("merge precondition: identifier column %s in table %d is not numeric", id, k)
		}
	}

	// Union of subject identifiers, keeping first-appearance order.
	var ids []float64
	rowOf := make(map[float64]int)
	for _, t := range tables {
		s := t.Col(id)
		for i := 0; i < t.NumRow(); i++ {
			if !s.Floats[i].Valid {
				continue
			}
			v := s.Floats[i].Float64
			if _, ok := rowOf[v]; !ok {
				rowOf[v] = len(ids)
				ids = append(ids, v)
			}
		}
	}

	idvals := make([]null.Float, len(ids))
	for i, v := range ids {
		idvals[i] = null.FloatFrom(v)
	}
	out := &Table{Series: []*Series{NewNumericNull(id, idvals)}}

	for _, t := range tables {
		s := t.Col(id)
		for _, col := range t.Series {
			if col.Name == id {
				continue
			}
			if out.HasCol(col.Name) {
				log.Printf("merge: duplicate column %s; keeping the first occurrence", col.Name)
				continue
			}
			merged := &Series{Name: col.Name, Kind: col.Kind}
			if col.Levels != nil {
				merged.Levels = append([]string{}, col.Levels...)
			}
			if col.Kind == Numeric {
				merged.Floats = make([]null.Float, len(ids))
			} else {
				merged.Strings = make([]null.String, len(ids))
			}
			for i := 0; i < t.NumRow(); i++ {
				if !s.Floats[i].Valid {
					continue
				}
				j := rowOf[s.Floats[i].Float64]
				if col.Kind == Numeric {
					merged.Floats[j] = col.Floats[i]
				} else {
					merged.Strings[j] = col.Strings[i]
				}
			}
			out.Series = append(out.Series, merged)
		}
	}

	return out, nil
}
