package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// Replace drops and recreates every table and fills it in one transaction.
// A busy or locked database is reported as sink.ErrTransient, anything else
// as sink.ErrPermanent.
func (s *Store) Replace(ctx context.Context, tables ...report.Table) error {
	return classify(s.replace(ctx, tables...))
}

func (s *Store) replace(ctx context.Context, tables ...report.Table) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range tables {
		if err = replaceTable(ctx, tx, t); err != nil {
			return fmt.Errorf("replace %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return sink.Transient(err)
	}
	return sink.Permanent(err)
}

func replaceTable(ctx context.Context, tx *sql.Tx, t report.Table) error {
	name, err := repository.QuoteIdent(t.Name)
	if err != nil {
		return err
	}
	defs := []string{"row_num INTEGER PRIMARY KEY"}
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "row_num")
	for _, c := range t.Columns {
		q, err := repository.QuoteIdent(c.Key)
		if err != nil {
			return err
		}
		typ := "TEXT"
		if c.Kind == report.KindInt {
			typ = "INTEGER"
		}
		defs = append(defs, q+" "+typ)
		cols = append(cols, q)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+name+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name,
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, row := range t.Rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, i)
		args = append(args, row...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM report_columns WHERE table_name = ?", t.Name); err != nil {
		return err
	}
	for i, c := range t.Columns {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO report_columns (table_name, position, key, label, kind) VALUES (?, ?, ?, ?, ?)",
			t.Name, i, c.Key, c.Label, int(c.Kind)); err != nil {
			return err
		}
	}
	return nil
}

// Table reads a reporting table back in row order.
func (s *Store) Table(ctx context.Context, name string) (report.Table, error) {
	cols, err := s.columns(ctx, name)
	if err != nil {
		return report.Table{}, err
	}
	quoted, err := repository.QuoteIdent(name)
	if err != nil {
		return report.Table{}, err
	}
	keys := make([]string, len(cols))
	for i, c := range cols {
		if keys[i], err = repository.QuoteIdent(c.Key); err != nil {
			return report.Table{}, err
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+strings.Join(keys, ", ")+" FROM "+quoted+" ORDER BY row_num")
	if err != nil {
		return report.Table{}, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	t := report.Table{Name: name, Columns: cols}
	for rows.Next() {
		texts := make([]sql.NullString, len(cols))
		ints := make([]sql.NullInt64, len(cols))
		dest := make([]any, len(cols))
		for i, c := range cols {
			if c.Kind == report.KindInt {
				dest[i] = &ints[i]
			} else {
				dest[i] = &texts[i]
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return report.Table{}, fmt.Errorf("scan %s: %w", name, err)
		}
		row := make([]any, len(cols))
		for i, c := range cols {
			if c.Kind == report.KindInt {
				row[i] = int(ints[i].Int64)
			} else {
				row[i] = texts[i].String
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func (s *Store) columns(ctx context.Context, name string) ([]report.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, label, kind FROM report_columns WHERE table_name = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("query report_columns: %w", err)
	}
	defer rows.Close()

	var cols []report.Column
	for rows.Next() {
		var (
			c    report.Column
			kind int
		)
		if err := rows.Scan(&c.Key, &c.Label, &kind); err != nil {
			return nil, err
		}
		c.Kind = report.Kind(kind)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", repository.ErrNotFound, name)
	}
	return cols, nil
}
