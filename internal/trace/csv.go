// Package trace holds the time series that drive the simulators: power traces, speed
// traces and link paths. Each reads and writes a flat CSV layout, one row per sample.
package trace

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
)

// table is a parsed CSV file with a header row.
type table struct {
	kind   string
	header map[string]int
	rows   [][]string
}

func readTable(r io.Reader, kind string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(core.ErrTraceData, "%s: %v", kind, err)
	}
	if len(records) < 2 {
		return nil, errors.Wrapf(core.ErrTraceData, "%s is empty", kind)
	}

	t := &table{kind: kind, header: make(map[string]int), rows: records[1:]}
	for i, name := range records[0] {
		t.header[strings.TrimSpace(name)] = i
	}
	return t, nil
}

// index returns the column index of the first name present in the header.
func (t *table) index(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.header[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func (t *table) require(names ...string) (int, error) {
	i, ok := t.index(names...)
	if !ok {
		return 0, errors.Wrapf(core.ErrTraceData, "%s: missing column %q", t.kind, names[0])
	}
	return i, nil
}

// cell returns the trimmed field at col, or "" for short rows.
func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func (t *table) float(row []string, col, line int, name string) (float64, error) {
	v, err := strconv.ParseFloat(cell(row, col), 64)
	if err != nil {
		return 0, errors.Wrapf(core.ErrTraceData, "%s line %d: %s: %v", t.kind, line, name, err)
	}
	return v, nil
}

// optBool parses an optional boolean; an empty field is nil.
func (t *table) optBool(row []string, col, line int, name string) (*bool, error) {
	s := cell(row, col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return nil, errors.Wrapf(core.ErrTraceData, "%s line %d: %s: %v", t.kind, line, name, err)
	}
	return &v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// bounds resolves an optional half-open [start, end) range against n.
func bounds(kind string, start, end *int, n int) (int, int, error) {
	s, e := 0, n
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}
	if e > n || s < 0 || s > e {
		return 0, 0, errors.Wrapf(core.ErrTraceData, "%s: trim range [%d, %d) outside length %d", kind, s, e, n)
	}
	return s, e, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open trace")
	}
	return f, nil
}

func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create trace")
	}
	return f, nil
}

func writeRows(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func checkIncreasing(kind string, time []float64) error {
	for i := 1; i < len(time); i++ {
		if time[i] <= time[i-1] {
			return errors.Wrapf(core.ErrTraceData, "%s: time must increase, t[%d]=%g after t[%d]=%g", kind, i, time[i], i-1, time[i-1])
		}
	}
	return nil
}
