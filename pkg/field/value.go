// Package field defines the value model and entity capabilities that EPP
// scripts use to read and write user-defined fields (UDFs) on LIMS records.
package field

import (
	"strconv"
	"strings"
)

// Value is an immutable UDF scalar. A Value is either present, carrying a
// string rendering of the underlying LIMS value, or absent. Absent is a
// normal comparable value, never an error condition.
type Value struct {
	raw     string
	present bool
}

// Absent returns the absent sentinel.
func Absent() Value { return Value{} }

// String wraps a string as a present Value.
func String(s string) Value { return Value{raw: s, present: true} }

// Number wraps a numeric UDF value. Trailing zeros are trimmed so that a
// value survives a LIMS round trip unchanged (the API renders 0.50 as 0.5).
func Number(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), present: true}
}

// Present reports whether the value exists.
func (v Value) Present() bool { return v.present }

// Render returns the textual form used in logs and changelog lines.
// Absent renders as the empty string.
func (v Value) Render() string { return v.raw }

// Float parses the value as a number. The second return is false when the
// value is absent or not numeric.
func (v Value) Float() (float64, bool) {
	if !v.present {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal compares two values. Two absent values are equal; an absent value
// never equals a present one. Values that both parse as numbers compare
// numerically, so renderings like 12.50 and 12.5 of the same Numeric UDF
// are equal.
func (v Value) Equal(o Value) bool {
	if v.present != o.present {
		return false
	}
	if !v.present {
		return true
	}
	if v.raw == o.raw {
		return true
	}
	vf, vok := v.Float()
	of, ook := o.Float()
	return vok && ook && vf == of
}
