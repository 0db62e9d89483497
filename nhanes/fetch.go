package nhanes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/carbocation/pfx"
	"github.com/kshedden/datareader"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/frame"
)

// ErrIDMissing marks a fetched table that lacks the subject identifier.
// Unlike an ordinary fetch failure, the pipeline cannot reconcile a
// dataset without it and treats this as fatal.
var ErrIDMissing = errors.New("identifier field missing from fetched table")

// Client fetches NHANES public-use tables for one survey cycle.
type Client struct {
	BaseURL    string
	Cycle      string
	CacheDir   string
	ID         string
	HTTPClient *http.Client
}

// NewClient returns a Client for the given cycle, caching decoded tables
// under cacheDir.
func NewClient(baseURL, cycle, cacheDir string) *Client {
	return &Client{
		BaseURL:  baseURL,
		Cycle:    cycle,
		CacheDir: cacheDir,
		ID:       "SEQN",
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Fetch retrieves one dataset by code (e.g. DEMO_J) and projects it to
// the requested fields plus the subject identifier. A requested field
// absent from the table degrades to a column of entirely missing values
// with a warning; an absent identifier is an error wrapping ErrIDMissing.
//
// Decoded tables are cached as CSV and reloaded from the cache on later
// runs.
func (c *Client) Fetch(code string, fields []string) (*frame.Table, error) {
	cachePath := filepath.Join(c.CacheDir, fmt.Sprintf("%s.csv", code))
	if _, err := os.Stat(cachePath); err == nil {
		tab, err := c.readCache(cachePath)
		if err == nil {
			log.Printf("nhanes: %s loaded from cache (%d rows)", code, tab.NumRow())
			return c.project(tab, code, fields)
		}
		log.Printf("nhanes: cache for %s unreadable, refetching: %v", code, err)
	}

	url := fmt.Sprintf("%s/%s/%s.XPT", c.BaseURL, c.Cycle, code)
	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nhanes: fetching %s: status %s", url, resp.Status)
	}

	tab, err := DecodeXPT(resp.Body)
	if err != nil {
		return nil, pfx.Err(err)
	}
	log.Printf("nhanes: %s downloaded (%d rows, %d columns)", code, tab.NumRow(), tab.NumCol())

	out, err := c.project(tab, code, fields)
	if err != nil {
		return nil, err
	}

	// The cache is an optimization; failing to write it is not an error.
	if err := c.writeCache(cachePath, out); err != nil {
		log.Printf("nhanes: could not cache %s: %v", code, err)
	}

	return out, nil
}

func (c *Client) project(tab *frame.Table, code string, fields []string) (*frame.Table, error) {
	if !tab.HasCol(c.ID) {
		return nil, fmt.Errorf("nhanes: table %s: %w", code, ErrIDMissing)
	}

	out := &frame.Table{}
	if err := out.Add(tab.Col(c.ID)); err != nil {
		return nil, pfx.Err(err)
	}
	for _, f := range fields {
		s := tab.Col(f)
		if s == nil {
			log.Printf("nhanes: table %s has no field %s; carrying it as all-missing", code, f)
			s = frame.AllMissing(f, tab.NumRow())
		}
		if err := out.Add(s); err != nil {
			return nil, pfx.Err(err)
		}
	}

	return out, nil
}

func (c *Client) writeCache(path string, tab *frame.Table) error {
	if err := os.MkdirAll(c.CacheDir, 0755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tab.Names()); err != nil {
		return pfx.Err(err)
	}
	row := make([]string, tab.NumCol())
	for i := 0; i < tab.NumRow(); i++ {
		for j, s := range tab.Series {
			row[j] = s.CellString(i)
		}
		if err := w.Write(row); err != nil {
			return pfx.Err(err)
		}
	}
	w.Flush()

	return pfx.Err(w.Error())
}

// readCache loads a cached table through datareader's type-inferring
// CSV reader.
func (c *Client) readCache(path string) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	rdr := datareader.NewCSVReader(f)
	cols, err := rdr.Read(-1)
	if err != nil {
		return nil, pfx.Err(err)
	}

	tab := &frame.Table{}
	for _, ser := range cols {
		s, err := fromSeries(ser)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if err := tab.Add(s); err != nil {
			return nil, pfx.Err(err)
		}
	}

	return tab, nil
}

// fromSeries converts one datareader column into a frame Series.
func fromSeries(ser *datareader.Series) (*frame.Series, error) {
	if vals, miss, err := ser.AsFloat64Slice(); err == nil {
		col := make([]null.Float, len(vals))
		for i, v := range vals {
			if (miss != nil && miss[i]) || math.IsNaN(v) {
				continue
			}
			col[i] = null.FloatFrom(v)
		}
		return frame.NewNumericNull(ser.Name, col), nil
	}

	strs, miss, err := ser.AsStringSlice()
	if err != nil {
		return nil, err
	}
	col := make([]null.String, len(strs))
	blank := true
	for i, v := range strs {
		if (miss != nil && miss[i]) || v == "" {
			continue
		}
		col[i] = null.StringFrom(v)
		blank = false
	}
	if blank {
		// An all-empty column has no type of its own; a numeric column of
		// all missing values round-trips this way.
		return frame.AllMissing(ser.Name, len(strs)), nil
	}

	return frame.NewText(ser.Name, col), nil
}
