/*
Package nhanes retrieves NHANES public-use data tables. Tables are
published as SAS transport (XPORT version 5) files; this package
downloads them, decodes them into frame tables, and caches the decoded
form on disk.

The transport format is a sequence of 80-byte card-image records: a
library header, a member header, a block of 140-byte NAMESTR variable
descriptors, an observation header, and then fixed-width observation
data with numerics stored as truncated IBM mainframe doubles. There is
no Go reader for this format (the usual statistical-file reader handles
SAS7BDAT, not transport), so the decoder lives here.
*/

package nhanes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"

	"github.com/jasonma1333/BMS2901Project/frame"
)

const (
	recordLen  = 80
	namestrLen = 140
)

type xptVariable struct {
	name    string
	numeric bool
	length  int
	pos     int
}

// DecodeXPT reads a SAS XPORT v5 file and returns its first member as a
// table. Numeric columns become numeric Series with transport missing
// sentinels mapped to null; character columns become text Series with
// blank cells mapped to null.
func DecodeXPT(r io.Reader) (*frame.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(raw) < recordLen || !strings.HasPrefix(string(raw[:20]), "HEADER RECORD*******") {
		return nil, errors.New("xport: not a SAS transport file")
	}

	// Walk the card-image records up to the NAMESTR header.
	pos := 0
	nvars := 0
	for ; pos+recordLen <= len(raw); pos += recordLen {
		rec := string(raw[pos : pos+recordLen])
		if !strings.Contains(rec, "NAMESTR HEADER RECORD") {
			continue
		}
		nvars, err = strconv.Atoi(strings.TrimSpace(rec[54:58]))
		if err != nil || nvars <= 0 {
			return nil, fmt.Errorf("xport: bad variable count in NAMESTR header: %q", rec[54:58])
		}
		pos += recordLen
		break
	}
	if nvars == 0 {
		return nil, errors.New("xport: no NAMESTR header record")
	}

	// The NAMESTR block is nvars*140 bytes, padded to a record boundary.
	nbytes := nvars * namestrLen
	if rem := nbytes % recordLen; rem != 0 {
		nbytes += recordLen - rem
	}
	if pos+nbytes > len(raw) {
		return nil, errors.New("xport: truncated NAMESTR block")
	}

	vars := make([]xptVariable, nvars)
	rowLen := 0
	for i := 0; i < nvars; i++ {
		ns := raw[pos+i*namestrLen : pos+(i+1)*namestrLen]
		v := xptVariable{
			name:    strings.TrimSpace(string(ns[8:16])),
			numeric: binary.BigEndian.Uint16(ns[0:2]) == 1,
			length:  int(binary.BigEndian.Uint16(ns[4:6])),
			pos:     int(binary.BigEndian.Uint32(ns[84:88])),
		}
		if v.length <= 0 {
			return nil, fmt.Errorf("xport: variable %s has length %d", v.name, v.length)
		}
		vars[i] = v
		rowLen += v.length
	}
	pos += nbytes

	// Skip forward to the observation header.
	found := false
	for ; pos+recordLen <= len(raw); pos += recordLen {
		if strings.Contains(string(raw[pos:pos+recordLen]), "OBS     HEADER RECORD") {
			pos += recordLen
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("xport: no observation header record")
	}

	data := raw[pos:]
	var rows int
	for ; (rows+1)*rowLen <= len(data); rows++ {
		if allBlank(data[rows*rowLen : (rows+1)*rowLen]) {
			// Trailing record padding.
			break
		}
	}

	tab := &frame.Table{}
	for _, v := range vars {
		if v.numeric {
			col := make([]null.Float, rows)
			for i := 0; i < rows; i++ {
				cell := data[i*rowLen+v.pos : i*rowLen+v.pos+v.length]
				if x, ok := ibmFloat(cell); ok {
					col[i] = null.FloatFrom(x)
				}
			}
			if err := tab.Add(frame.NewNumericNull(v.name, col)); err != nil {
				return nil, pfx.Err(err)
			}
			continue
		}
		col := make([]null.String, rows)
		for i := 0; i < rows; i++ {
			cell := strings.TrimSpace(string(data[i*rowLen+v.pos : i*rowLen+v.pos+v.length]))
			if cell != "" {
				col[i] = null.StringFrom(cell)
			}
		}
		if err := tab.Add(frame.NewText(v.name, col)); err != nil {
			return nil, pfx.Err(err)
		}
	}

	return tab, nil
}

func allBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

// ibmFloat converts a truncated (2-8 byte) IBM mainframe double to an
// IEEE float64. The second return value is false for the transport
// missing sentinels: a '.', '_' or 'A'-'Z' byte followed by zeros.
func ibmFloat(b []byte) (float64, bool) {
	if len(b) == 0 || len(b) > 8 {
		return 0, false
	}

	if b[0] == '.' || b[0] == '_' || (b[0] >= 'A' && b[0] <= 'Z') {
		rest := true
		for _, c := range b[1:] {
			if c != 0 {
				rest = false
				break
			}
		}
		if rest {
			return 0, false
		}
	}

	var full [8]byte
	copy(full[:], b)
	u := binary.BigEndian.Uint64(full[:])
	if u == 0 {
		return 0, true
	}

	frac := u & 0x00ffffffffffffff
	if frac == 0 {
		return 0, true
	}

	// Sign bit, 7-bit excess-64 base-16 exponent, 56-bit fraction.
	exp := int((u>>56)&0x7f) - 64
	x := float64(frac) * math.Pow(16, float64(exp)) / (1 << 56)
	if u&0x8000000000000000 != 0 {
		x = -x
	}

	return x, true
}
