// Package report turns pipeline records into the person-level and
// event-level reporting tables and renders them for sinks.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Placeholder stands in for a missing text value.
const Placeholder = "_"

// Layouts for dates and timestamps in reporting rows.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05.000000"
)

// Kind is the scalar type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
)

// Column is one reporting column: a storage-safe key and the header label
// downstream sheets depend on.
type Column struct {
	Key   string
	Label string
	Kind  Kind
}

// Table is a fully materialized reporting table. Every row has one value per
// column: a string for KindText, an int for KindInt.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Header returns the column labels in order.
func (t Table) Header() []string {
	h := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		h[i] = c.Label
	}
	return h
}

// Keys returns the column keys in order.
func (t Table) Keys() []string {
	k := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		k[i] = c.Key
	}
	return k
}

// StringRows renders every row as text, header excluded.
func (t Table) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		out[i] = cells
	}
	return out
}

// FormatCell renders one reporting value as text.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return Placeholder
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes the header row followed by every row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.StringRows()); err != nil {
		return err
	}
	return cw.Error()
}
