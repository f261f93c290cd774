// Package postgres is the PostgreSQL backend for submissions, venues and
// reporting tables.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Store is a pgx-backed repository.Backend.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Backend = (*Store)(nil)

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, gerrors.Wrap(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, gerrors.Wrap(err, "ping")
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, gerrors.Wrap(err, "apply schema")
	}
	return &Store{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Save(ctx context.Context, sub model.Submission) error {
	original := sub.EventDateOriginal
	if original.IsZero() {
		original = sub.EventDate
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO backblast (
		id, event_date, event_date_original, venue_label, venue_channel_id,
		organizer_name, organizer_id, participant_names, participant_ids,
		new_participant_names, new_participant_ids, unregistered, visiting_count,
		summary, submitted_by_name, submitted_by_id, team_id, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sub.ID, sub.EventDate, original, sub.VenueLabel, sub.VenueChannelID,
		sub.OrganizerName, sub.OrganizerID,
		nonNil(sub.ParticipantNames), nonNil(sub.ParticipantIDs),
		nonNil(sub.NewParticipantNames), nonNil(sub.NewParticipantIDs),
		sub.UnregisteredParticipants, sub.VisitingCount, sub.Summary,
		sub.SubmittedByName, sub.SubmittedByID, sub.TeamID, sub.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, sub.ID)
		}
		return gerrors.Wrapf(err, "insert backblast %s", sub.ID)
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.pool.Query(ctx, `SELECT
		id, event_date, event_date_original, venue_label, venue_channel_id,
		organizer_name, organizer_id, participant_names, participant_ids,
		new_participant_names, new_participant_ids, unregistered, visiting_count,
		summary, submitted_by_name, submitted_by_id, team_id, recorded_at
	FROM backblast ORDER BY seq`)
	if err != nil {
		return nil, gerrors.Wrap(err, "query backblast")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.EventDate, &sub.EventDateOriginal,
			&sub.VenueLabel, &sub.VenueChannelID, &sub.OrganizerName, &sub.OrganizerID,
			&sub.ParticipantNames, &sub.ParticipantIDs, &sub.NewParticipantNames, &sub.NewParticipantIDs,
			&sub.UnregisteredParticipants, &sub.VisitingCount, &sub.Summary,
			&sub.SubmittedByName, &sub.SubmittedByID, &sub.TeamID, &sub.RecordedAt); err != nil {
			return nil, gerrors.Wrap(err, "scan backblast")
		}
		sub.EventDate = sub.EventDate.UTC()
		sub.EventDateOriginal = sub.EventDateOriginal.UTC()
		sub.RecordedAt = sub.RecordedAt.UTC()
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM backblast").Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count backblast")
	}
	return n, nil
}

func (s *Store) LoadVenues(ctx context.Context) (model.VenueTable, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT label, identity, category, region, weekday, lat, lon FROM ao_info ORDER BY label")
	if err != nil {
		return nil, gerrors.Wrap(err, "query ao_info")
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var (
			v        model.Venue
			weekday  pgtype.Int2
			lat, lon pgtype.Float8
		)
		if err := rows.Scan(&v.Label, &v.Identity, &v.Category, &v.Region, &weekday, &lat, &lon); err != nil {
			return nil, gerrors.Wrap(err, "scan ao_info")
		}
		if weekday.Valid {
			d := int(weekday.Int16)
			v.Weekday = &d
		}
		if lat.Valid {
			v.Lat = &lat.Float64
		}
		if lon.Valid {
			v.Lon = &lon.Float64
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return model.NewVenueTable(venues), nil
}

func (s *Store) UpsertVenues(ctx context.Context, venues []model.Venue) error {
	batch := &pgx.Batch{}
	for _, v := range venues {
		identity := v.Identity
		if identity == "" {
			identity = v.Label
		}
		batch.Queue(`INSERT INTO ao_info (label, identity, category, region, weekday, lat, lon)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (label) DO UPDATE SET
				identity = EXCLUDED.identity, category = EXCLUDED.category, region = EXCLUDED.region,
				weekday = EXCLUDED.weekday, lat = EXCLUDED.lat, lon = EXCLUDED.lon`,
			v.Label, identity, v.Category, v.Region, v.Weekday, v.Lat, v.Lon)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return gerrors.Wrap(err, "upsert ao_info")
	}
	return nil
}

// Replace drops, recreates and copies every table in one transaction.
// Serialization failures, deadlocks and connection errors are reported as
// sink.ErrTransient, anything else as sink.ErrPermanent.
func (s *Store) Replace(ctx context.Context, tables ...report.Table) error {
	return classify(s.replace(ctx, tables...))
}

func (s *Store) replace(ctx context.Context, tables ...report.Table) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return gerrors.Wrap(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, t := range tables {
		if err := replaceTable(ctx, tx, t); err != nil {
			return gerrors.Wrapf(err, "replace %s", t.Name)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return gerrors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

// SQLSTATEs worth retrying besides class 08 (connection exception).
var retryableStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if retryableStates[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08") {
			return sink.Transient(err)
		}
		return sink.Permanent(err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if pgconn.SafeToRetry(err) || errors.As(err, &connErr) || errors.As(err, &netErr) {
		return sink.Transient(err)
	}
	return sink.Permanent(err)
}

func replaceTable(ctx context.Context, tx pgx.Tx, t report.Table) error {
	name := pgx.Identifier{t.Name}.Sanitize()
	defs := []string{"row_num INTEGER PRIMARY KEY"}
	cols := []string{"row_num"}
	for _, c := range t.Columns {
		typ := "TEXT"
		if c.Kind == report.KindInt {
			typ = "BIGINT"
		}
		defs = append(defs, pgx.Identifier{c.Key}.Sanitize()+" "+typ)
		cols = append(cols, c.Key)
	}

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "CREATE TABLE "+name+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, cols,
		pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
			row := make([]any, 0, len(t.Rows[i])+1)
			row = append(row, i)
			return append(row, t.Rows[i]...), nil
		}))
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM report_columns WHERE table_name = $1", t.Name); err != nil {
		return err
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"report_columns"},
		[]string{"table_name", "position", "key", "label", "kind"},
		pgx.CopyFromSlice(len(t.Columns), func(i int) ([]any, error) {
			c := t.Columns[i]
			return []any{t.Name, i, c.Key, c.Label, int16(c.Kind)}, nil
		}))
	return err
}

// Table reads a reporting table back in row order.
func (s *Store) Table(ctx context.Context, name string) (report.Table, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT key, label, kind FROM report_columns WHERE table_name = $1 ORDER BY position", name)
	if err != nil {
		return report.Table{}, gerrors.Wrap(err, "query report_columns")
	}
	var cols []report.Column
	for rows.Next() {
		var (
			c    report.Column
			kind int16
		)
		if err := rows.Scan(&c.Key, &c.Label, &kind); err != nil {
			rows.Close()
			return report.Table{}, err
		}
		c.Kind = report.Kind(kind)
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report.Table{}, err
	}
	if len(cols) == 0 {
		return report.Table{}, fmt.Errorf("%w: table %s", repository.ErrNotFound, name)
	}

	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = pgx.Identifier{c.Key}.Sanitize()
	}
	data, err := s.pool.Query(ctx, "SELECT "+strings.Join(keys, ", ")+
		" FROM "+pgx.Identifier{name}.Sanitize()+" ORDER BY row_num")
	if err != nil {
		return report.Table{}, gerrors.Wrapf(err, "query %s", name)
	}
	defer data.Close()

	t := report.Table{Name: name, Columns: cols}
	for data.Next() {
		values, err := data.Values()
		if err != nil {
			return report.Table{}, gerrors.Wrapf(err, "read %s", name)
		}
		row := make([]any, len(values))
		for i, v := range values {
			switch x := v.(type) {
			case int64:
				row[i] = int(x)
			case nil:
				if cols[i].Kind == report.KindInt {
					row[i] = 0
				} else {
					row[i] = ""
				}
			default:
				row[i] = x
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, data.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
