package frame

import (
	"encoding/gob"
	"os"

	"github.com/carbocation/pfx"
	"github.com/golang/snappy"
)

// Save serializes the table to disk as snappy-compressed gob, so that a
// finished analysis cohort can be reloaded without rerunning the
// pipeline.
func Save(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	wtr := snappy.NewBufferedWriter(f)
	defer wtr.Close()

	if err := gob.NewEncoder(wtr).Encode(t); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Load reads a table previously written by Save.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	t := &Table{}
	if err := gob.NewDecoder(snappy.NewReader(f)).Decode(t); err != nil {
		return nil, pfx.Err(err)
	}

	return t, nil
}
