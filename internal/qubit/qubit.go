// Package qubit parses Qubit fluorometer concentration reports and
// normalizes their readings into the UDF values the LIMS expects.
package qubit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"limsepp/pkg/field"
)

// UDF names written onto destination artifacts.
const (
	UDFConcentration = "Concentration"
	UDFUnits         = "Conc. Units"
	UDFQCFlag        = "QC Flag"
)

// QC flag values.
const (
	QCPassed = "PASSED"
	QCFailed = "FAILED"
)

// The canonical concentration unit stored in the LIMS.
const canonicalUnits = "ng/ul"

// outOfRange is how the instrument exports readings outside its assay range.
const outOfRange = "out of range"

// Measurement is one row of a Qubit report: the sample name, the raw
// concentration cell as exported, and its unit.
type Measurement struct {
	Sample string
	Raw    string
	Units  string
}

// OutOfRange reports whether the instrument flagged the reading instead of
// producing a number.
func (m Measurement) OutOfRange() bool {
	return strings.EqualFold(strings.TrimSpace(m.Raw), outOfRange)
}

// ParseReport reads a Qubit CSV export. The header row locates the columns;
// exports from different instrument firmware versions order them differently.
func ParseReport(r io.Reader) ([]Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	sampleCol, concCol, unitsCol := -1, -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case name == "test name" || name == "sample name":
			sampleCol = i
		case strings.Contains(name, "units"):
			unitsCol = i
		case strings.Contains(name, "original sample conc"):
			concCol = i
		}
	}
	if sampleCol < 0 || concCol < 0 {
		return nil, fmt.Errorf("report header missing sample or concentration column: %q", header)
	}

	var out []Measurement
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) <= concCol || len(record) <= sampleCol {
			continue
		}
		m := Measurement{
			Sample: strings.TrimSpace(record[sampleCol]),
			Raw:    strings.TrimSpace(record[concCol]),
		}
		if unitsCol >= 0 && len(record) > unitsCol {
			m.Units = strings.TrimSpace(record[unitsCol])
		}
		if m.Sample == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Result holds the normalized UDF values for one measurement.
type Result struct {
	Concentration field.Value // absent when the reading is out of range
	Units         field.Value
	QCFlag        field.Value
}

// Normalize converts a measurement to the canonical ng/ul unit. An
// out-of-range reading fails QC and carries no numeric concentration.
func Normalize(m Measurement) (Result, error) {
	if m.OutOfRange() {
		return Result{QCFlag: field.String(QCFailed)}, nil
	}
	raw, err := strconv.ParseFloat(m.Raw, 64)
	if err != nil {
		return Result{}, fmt.Errorf("concentration for %s not numeric: %q", m.Sample, m.Raw)
	}
	var conc float64
	switch strings.ToLower(strings.TrimSpace(m.Units)) {
	case "ng/ml":
		conc = raw / 1000
	case "ng/ul", "ug/ml":
		conc = raw
	default:
		return Result{}, fmt.Errorf("unknown concentration unit %q for %s", m.Units, m.Sample)
	}
	return Result{
		Concentration: field.Number(conc),
		Units:         field.String(canonicalUnits),
		QCFlag:        field.String(QCPassed),
	}, nil
}

// Entity presents a normalized result as an entity so the copier treats
// file-to-LIMS transfers like any other copy source.
func (r Result) Entity(sample string) *field.MapEntity {
	e := field.NewMapEntity(sample, sample, "result file")
	if r.Concentration.Present() {
		e.SetUDF(UDFConcentration, r.Concentration)
	}
	if r.Units.Present() {
		e.SetUDF(UDFUnits, r.Units)
	}
	if r.QCFlag.Present() {
		e.SetUDF(UDFQCFlag, r.QCFlag)
	}
	return e
}
