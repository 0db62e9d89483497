package nhanes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoXPT(t *testing.T) []byte {
	fields := []xptField{
		{name: "SEQN", numeric: true, length: 8},
		{name: "RIDAGEYR", numeric: true, length: 8},
	}
	rows := [][]interface{}{
		{1.0, 34.0},
		{2.0, nil},
		{3.0, 61.0},
	}
	return buildXPT(t, fields, rows)
}

func newTestServer(t *testing.T, hits *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2017-2018/DEMO_J.XPT" {
			http.NotFound(w, r)
			return
		}
		*hits++
		w.Write(demoXPT(t))
	}))
}

func TestFetchProjectsFields(t *testing.T) {
	var hits int
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "2017-2018", t.TempDir())

	tab, err := c.Fetch("DEMO_J", []string{"RIDAGEYR", "RIDRETH1"})
	require.NoError(t, err)

	require.Equal(t, []string{"SEQN", "RIDAGEYR", "RIDRETH1"}, tab.Names())
	require.Equal(t, 3, tab.NumRow())
	assert.Equal(t, 34.0, tab.Col("RIDAGEYR").Floats[0].Float64)
	assert.False(t, tab.Col("RIDAGEYR").Valid(1))

	// A requested field the table does not carry degrades to a column
	// of entirely missing values, not an absent column.
	eth := tab.Col("RIDRETH1")
	require.NotNil(t, eth)
	for i := 0; i < tab.NumRow(); i++ {
		assert.False(t, eth.Valid(i))
	}
}

func TestFetchUsesCache(t *testing.T) {
	var hits int
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "2017-2018", t.TempDir())

	first, err := c.Fetch("DEMO_J", []string{"RIDAGEYR"})
	require.NoError(t, err)
	second, err := c.Fetch("DEMO_J", []string{"RIDAGEYR"})
	require.NoError(t, err)

	assert.Equal(t, 1, hits, "second fetch should come from the cache")
	require.Equal(t, first.NumRow(), second.NumRow())
	assert.Equal(t, first.Names(), second.Names())
	assert.False(t, second.Col("RIDAGEYR").Valid(1), "missing values survive the cache")
	assert.Equal(t, "61", second.Col("RIDAGEYR").CellString(2))
}

func TestFetchHTTPFailure(t *testing.T) {
	var hits int
	srv := newTestServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "2017-2018", t.TempDir())
	_, err := c.Fetch("BMX_J", []string{"BMXBMI"})
	require.Error(t, err)
}

func TestFetchMissingIdentifier(t *testing.T) {
	fields := []xptField{{name: "RIDAGEYR", numeric: true, length: 8}}
	rows := [][]interface{}{{41.0}}
	body := buildXPT(t, fields, rows)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s", body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2017-2018", t.TempDir())
	_, err := c.Fetch("DEMO_J", []string{"RIDAGEYR"})
	require.ErrorIs(t, err, ErrIDMissing)
}
