// Package table holds the in-memory tabular value the engine transforms.
// Cells are strings as read from CSV; the empty string is null. Encoding is
// deterministic so that re-running a preprocess against the same input bytes
// produces byte-identical output.
package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/strata-systems/strata/pkg/types"
)

// Table is a rectangular block of string cells under a header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// FromCSV decodes a CSV document. The first record is the header. Short rows
// are padded with nulls; long rows are an error.
func FromCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, types.NewError(types.KindInvalidInput, "empty CSV input")
	}
	if err != nil {
		return nil, types.WrapError(types.KindInvalidInput, err, "reading CSV header")
	}

	t := &Table{Columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.WrapError(types.KindInvalidInput, err, "reading CSV row %d", len(t.Rows)+2)
		}
		if len(rec) > len(header) {
			return nil, types.NewError(types.KindInvalidInput,
				"row %d has %d fields, header has %d", len(t.Rows)+2, len(rec), len(header))
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// FromBytes decodes a CSV document held in memory.
func FromBytes(b []byte) (*Table, error) {
	return FromCSV(bytes.NewReader(b))
}

// EncodeCSV renders the table back to CSV bytes. Output is a pure function
// of the table contents: header then rows, "\n" line endings, minimal
// quoting as produced by encoding/csv.
func (t *Table) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MustColumn returns the position of the named column or a typed error.
func (t *Table) MustColumn(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return 0, types.NewError(types.KindInvalidInput, "unknown column %q", name)
	}
	return idx, nil
}

// IsNull reports whether a cell is null.
func IsNull(cell string) bool { return cell == "" }

// FormatFloat renders a float the single way the engine ever prints one,
// keeping encoded output stable across runs.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NumericColumn parses the named column's non-null cells as floats,
// returning values and their row indexes.
func (t *Table) NumericColumn(name string) ([]float64, []int, error) {
	idx, err := t.MustColumn(name)
	if err != nil {
		return nil, nil, err
	}
	var vals []float64
	var rows []int
	for i, row := range t.Rows {
		if IsNull(row[idx]) {
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return nil, nil, types.NewError(types.KindInvalidInput,
				"column %q is not numeric at row %d: %q", name, i, row[idx])
		}
		vals = append(vals, v)
		rows = append(rows, i)
	}
	return vals, rows, nil
}
