package frame

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/carbocation/pfx"
)

// WriteTSV renders the table as tab-separated values with a header row.
// Missing cells are emitted as empty strings rather than a NULL marker
// since this plays better with downstream table loaders.
func WriteTSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Names()); err != nil {
		return pfx.Err(err)
	}

	row := make([]string, t.NumCol())
	for i := 0; i < t.NumRow(); i++ {
		for j, s := range t.Series {
			row[j] = s.CellString(i)
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	return pfx.Err(cw.Error())
}

// WriteTSVFile writes the table to a file, creating or truncating it.
func WriteTSVFile(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	return WriteTSV(t, f)
}
