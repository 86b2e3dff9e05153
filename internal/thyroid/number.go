package thyroid

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a leniently decoded numeric field. Numbers, numeric strings and
// booleans keep their value; anything else decodes to 0 instead of failing the
// whole request.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*n = 0
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = Number(ParseValue(s))
	case 't':
		*n = 1
	case 'f':
		*n = 0
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		*n = Number(f)
	}
	return nil
}

// Float returns the value, or 0 for a nil Number.
func (n *Number) Float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// NewNumber is a convenience for building inputs in code.
func NewNumber(v float64) *Number {
	n := Number(v)
	return &n
}

// ParseValue converts a raw cell to a float, mapping empty, non-numeric, NaN and
// infinite values to 0.
func ParseValue(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// RecordID is a leniently decoded record id. Strings are kept, non-zero numbers
// and true are stringified, and every other value decodes to "" so the batch
// scorer assigns a positional id.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*id = ""
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*id = RecordID(s)
		}
	case 't':
		*id = "true"
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(data), 64)
		if err == nil && f != 0 && !math.IsInf(f, 0) {
			*id = RecordID(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return nil
}
