/*
Package config holds the fixed configuration for the gout / coronary
heart disease analysis: the survey cycle and output locations, and the
codebook describing which NHANES tables and fields are pulled and how
the raw survey codes are recoded into analysis variables.

The codebook ships inside the binary; there is no runtime configuration
surface beyond these constants.
*/

package config

import (
	"errors"

	"github.com/BurntSushi/toml"
	"github.com/carbocation/pfx"
	"github.com/gobuffalo/packr"
)

const (
	// Survey cycle under analysis. Table names carry the matching
	// cycle suffix (e.g. DEMO_J for 2017-2018).
	Cycle = "2017-2018"

	// All artifacts are written below this directory.
	OutDir = "gout_chd_results"

	// Raw tables are fetched from the CDC and cached here.
	BaseURL  = "https://wwwn.cdc.gov/Nchs/Nhanes"
	CacheDir = "nhanes_cache"

	// Subject identifier shared by every NHANES table.
	IDField = "SEQN"

	// Minimum age for cohort inclusion (adults only).
	MinAge = 20.0

	// Primary exposure and outcome variables, and the age variable the
	// inclusion rule is defined over.
	ExposureVar = "gout"
	OutcomeVar  = "chd"
	AgeVar      = "age"
)

// TableSpec names one source dataset and the fields requested from it.
// The subject identifier is always retained and need not be listed.
type TableSpec struct {
	Name   string
	Fields []string
}

// BinarySpec derives a 0/1/missing status from one coded field. Codes in
// Yes map to 1 and codes in No map to 0; every other code, including
// refusal and don't-know, is missing. Labels name the two factor levels
// (no first) used once the cohort is assembled.
type BinarySpec struct {
	Name   string
	Source string
	Yes    []string
	No     []string
	Labels []string
}

// FactorSpec derives a categorical variable with a fixed level set.
// Codes and Labels are parallel; Reference designates the baseline
// level for regression.
type FactorSpec struct {
	Name      string
	Source    string
	Reference string
	Codes     []string
	Labels    []string
}

// NumericSpec passes a continuous measure through unchanged.
type NumericSpec struct {
	Name   string
	Source string
}

// BandSpec partitions a continuous measure into right-closed intervals
// (lower, cut1], (cut1, cut2], ..., (cutN, inf) with one label each.
type BandSpec struct {
	Name      string
	Source    string
	Reference string
	Lower     float64
	Cuts      []float64
	Labels    []string
}

// Codebook is the full recoding plan decoded from codebook.toml.
type Codebook struct {
	Table   []TableSpec
	Binary  []BinarySpec
	Factor  []FactorSpec
	Numeric []NumericSpec
	Bands   BandSpec
}

// Load decodes the embedded codebook.
func Load() (*Codebook, error) {
	box := packr.NewBox("./data")

	raw := box.Bytes("codebook.toml")
	if len(raw) == 0 {
		return nil, errors.New("config: embedded codebook not found")
	}

	cb := new(Codebook)
	if _, err := toml.Decode(string(raw), cb); err != nil {
		return nil, pfx.Err(err)
	}

	if len(cb.Table) == 0 {
		return nil, errors.New("config: codebook lists no source tables")
	}

	return cb, nil
}
