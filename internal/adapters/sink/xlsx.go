package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

const defaultSheet = "Sheet1"

// XLSX keeps the reporting tables as sheets of one workbook. A Replace builds
// a new workbook next to the target and renames it into place, so readers
// see the old file or the new one.
type XLSX struct {
	mu   sync.Mutex
	path string
}

// NewXLSX returns a sink writing the workbook at path.
func NewXLSX(path string) *XLSX {
	return &XLSX{path: path}
}

// Path returns the workbook location.
func (x *XLSX) Path() string { return x.path }

// Replace rewrites the named sheets. Other sheets of an existing workbook
// are carried over as text.
func (x *XLSX) Replace(ctx context.Context, tables ...report.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tables) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	kept, err := x.otherSheets(tables)
	if err != nil {
		return Permanent(err)
	}

	f := excelize.NewFile()
	defer f.Close()
	for _, t := range tables {
		if err := writeSheet(f, t.Name, t.Header(), t.Rows); err != nil {
			return Permanent(fmt.Errorf("sheet %s: %w", t.Name, err))
		}
	}
	for _, s := range kept {
		if err := writeSheet(f, s.name, s.cells[0], toAny(s.cells[1:])); err != nil {
			return Permanent(fmt.Errorf("sheet %s: %w", s.name, err))
		}
	}
	if !claims(tables, defaultSheet) && !slices.ContainsFunc(kept, func(s sheetCells) bool { return s.name == defaultSheet }) {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return Permanent(err)
		}
	}
	if idx, err := f.GetSheetIndex(tables[0].Name); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	tmp, err := os.CreateTemp(filepath.Dir(x.path), ".backblast-*.xlsx")
	if err != nil {
		return Transient(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return Transient(fmt.Errorf("write workbook: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return Transient(err)
	}
	if err := os.Rename(tmpName, x.path); err != nil {
		return Transient(fmt.Errorf("install workbook: %w", err))
	}
	return nil
}

type sheetCells struct {
	name  string
	cells [][]string
}

func (x *XLSX) otherSheets(tables []report.Table) ([]sheetCells, error) {
	f, err := excelize.OpenFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []sheetCells
	for _, name := range f.GetSheetList() {
		if claims(tables, name) {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		out = append(out, sheetCells{name: name, cells: rows})
	}
	return out, nil
}

func writeSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if name != defaultSheet {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	if err := f.SetSheetRow(name, "A1", &h); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := append([]any(nil), row...)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func claims(tables []report.Table, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

func toAny(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}

// Table reads a sheet back. Integer columns are parsed; other cells stay
// text.
func (x *XLSX) Table(ctx context.Context, name string) (report.Table, error) {
	if err := ctx.Err(); err != nil {
		return report.Table{}, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := excelize.OpenFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return report.Table{}, fmt.Errorf("%w: workbook %s", repository.ErrNotFound, x.path)
	}
	if err != nil {
		return report.Table{}, err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		return report.Table{}, fmt.Errorf("%w: sheet %s", repository.ErrNotFound, name)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return report.Table{}, err
	}
	return TableFromCells(name, rows)
}

// TableFromCells rebuilds a table from a header row and text cells. Known
// reporting labels recover their column key and kind; unknown labels become
// text columns keyed by the label.
func TableFromCells(name string, cells [][]string) (report.Table, error) {
	if len(cells) == 0 {
		return report.Table{}, fmt.Errorf("%w: %s has no header", repository.ErrNotFound, name)
	}
	known := make(map[string]report.Column, len(report.PersonColumns))
	for _, c := range report.PersonColumns {
		known[c.Label] = c
	}

	t := report.Table{Name: name}
	for _, label := range cells[0] {
		c, ok := known[label]
		if !ok {
			c = report.Column{Key: label, Label: label}
		}
		t.Columns = append(t.Columns, c)
	}
	for _, raw := range cells[1:] {
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			v := ""
			if i < len(raw) {
				v = raw[i]
			}
			row[i] = v
			if c.Kind != report.KindInt {
				continue
			}
			// unparsable counts stay text so quality checks can flag them
			if n, err := strconv.Atoi(v); err == nil {
				row[i] = n
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
