package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// CSVDir writes each table to <dir>/<name>.csv. Files are staged first and
// installed only after every table was written.
type CSVDir struct {
	dir    string
	rename func(oldpath, newpath string) error
}

// NewCSVDir returns a sink writing into dir, which must exist.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir, rename: os.Rename}
}

type stagedCSV struct {
	tmp, final, backup string
	hadOld, installed  bool
}

// Replace writes every table to a temp file, then moves the current files
// aside and the new ones into place. If any move fails, the files already
// installed are taken out again and the previous ones restored.
func (c *CSVDir) Replace(ctx context.Context, tables ...report.Table) (err error) {
	staged := make([]*stagedCSV, 0, len(tables))
	defer func() {
		for _, st := range staged {
			if !st.installed {
				os.Remove(st.tmp)
			}
		}
	}()

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(c.dir, ".backblast-*.csv")
		if err != nil {
			return Permanent(err)
		}
		final := filepath.Join(c.dir, t.Name+".csv")
		staged = append(staged, &stagedCSV{tmp: tmp.Name(), final: final, backup: tmp.Name() + ".prev"})
		if err := report.WriteCSV(tmp, t); err != nil {
			tmp.Close()
			return Transient(fmt.Errorf("write %s: %w", t.Name, err))
		}
		if err := tmp.Close(); err != nil {
			return Transient(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			c.rollback(staged)
		}
	}()
	for _, st := range staged {
		if _, statErr := os.Stat(st.final); statErr == nil {
			if err = c.rename(st.final, st.backup); err != nil {
				return Transient(fmt.Errorf("move aside %s: %w", st.final, err))
			}
			st.hadOld = true
		}
		if err = c.rename(st.tmp, st.final); err != nil {
			return Transient(fmt.Errorf("install %s: %w", st.final, err))
		}
		st.installed = true
	}
	for _, st := range staged {
		if st.hadOld {
			os.Remove(st.backup)
		}
	}
	return nil
}

// rollback undoes a partial install in reverse order.
func (c *CSVDir) rollback(staged []*stagedCSV) {
	for i := len(staged) - 1; i >= 0; i-- {
		st := staged[i]
		if st.installed {
			os.Remove(st.final)
			st.installed = false
		}
		if st.hadOld {
			_ = c.rename(st.backup, st.final)
		}
	}
}

// Table reads <dir>/<name>.csv back.
func (c *CSVDir) Table(_ context.Context, name string) (report.Table, error) {
	f, err := os.Open(filepath.Join(c.dir, name+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return report.Table{}, fmt.Errorf("%w: %s", repository.ErrNotFound, name)
	}
	if err != nil {
		return report.Table{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	cells, err := r.ReadAll()
	if err != nil {
		return report.Table{}, fmt.Errorf("read %s: %w", name, err)
	}
	return TableFromCells(name, cells)
}
