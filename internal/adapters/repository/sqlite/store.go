// Package sqlite is the single-file SQLite backend for submissions, venues
// and reporting tables.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - backblast, ao_info and report_columns
// 2 - ao_info.weekday limited to 0-6
const currentSchemaVersion = 2

// migrations[v] upgrades a database at version v to v+1.
var migrations = map[int]string{
	1: `BEGIN;
CREATE TABLE ao_info_v2 (
    label    TEXT PRIMARY KEY,
    identity TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    region   TEXT NOT NULL DEFAULT '',
    weekday  INTEGER CHECK (weekday BETWEEN 0 AND 6),
    lat      REAL,
    lon      REAL
);
INSERT INTO ao_info_v2 (label, identity, category, region, weekday, lat, lon)
SELECT label, identity, category, region,
       CASE WHEN weekday BETWEEN 0 AND 6 THEN weekday END, lat, lon
FROM ao_info;
DROP TABLE ao_info;
ALTER TABLE ao_info_v2 RENAME TO ao_info;
COMMIT;`,
}

// Store is a SQLite-backed repository.Backend.
type Store struct {
	db *sql.DB
}

var _ repository.Backend = (*Store)(nil)

// Open creates or opens a SQLite database at path and applies pragmas and
// the schema. It is safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if version == 0 {
		if _, err := db.Exec(schemaSQL); err != nil {
			return err
		}
		version = currentSchemaVersion
	}
	for ; version < currentSchemaVersion; version++ {
		if _, err := db.Exec(migrations[version]); err != nil {
			return fmt.Errorf("migrate to %d: %w", version+1, err)
		}
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

const insertSubmission = `INSERT INTO backblast (
	id, event_date, event_date_original, venue_label, venue_channel_id,
	organizer_name, organizer_id, participant_names, participant_ids,
	new_participant_names, new_participant_ids, unregistered, visiting_count,
	summary, submitted_by_name, submitted_by_id, team_id, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) Save(ctx context.Context, sub model.Submission) error {
	lists, err := encodeLists(sub)
	if err != nil {
		return err
	}
	original := sub.EventDateOriginal
	if original.IsZero() {
		original = sub.EventDate
	}
	_, err = s.db.ExecContext(ctx, insertSubmission,
		sub.ID, sub.EventDate.Format(model.DateLayout), original.Format(model.DateLayout),
		sub.VenueLabel, sub.VenueChannelID, sub.OrganizerName, sub.OrganizerID,
		lists[0], lists[1], lists[2], lists[3],
		sub.UnregisteredParticipants, sub.VisitingCount, sub.Summary,
		sub.SubmittedByName, sub.SubmittedByID, sub.TeamID,
		sub.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, sub.ID)
		}
		return fmt.Errorf("insert backblast %s: %w", sub.ID, err)
	}
	return nil
}

const selectSubmissions = `SELECT
	id, event_date, event_date_original, venue_label, venue_channel_id,
	organizer_name, organizer_id, participant_names, participant_ids,
	new_participant_names, new_participant_ids, unregistered, visiting_count,
	summary, submitted_by_name, submitted_by_id, team_id, recorded_at
FROM backblast ORDER BY seq`

func (s *Store) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, selectSubmissions)
	if err != nil {
		return nil, fmt.Errorf("query backblast: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var (
			sub                model.Submission
			date, original, at string
			pn, pi, npn, npi   string
		)
		if err := rows.Scan(&sub.ID, &date, &original, &sub.VenueLabel, &sub.VenueChannelID,
			&sub.OrganizerName, &sub.OrganizerID, &pn, &pi, &npn, &npi,
			&sub.UnregisteredParticipants, &sub.VisitingCount, &sub.Summary,
			&sub.SubmittedByName, &sub.SubmittedByID, &sub.TeamID, &at); err != nil {
			return nil, fmt.Errorf("scan backblast: %w", err)
		}
		if sub.EventDate, err = model.ParseDate(date); err != nil {
			return nil, err
		}
		if sub.EventDateOriginal, err = model.ParseDate(original); err != nil {
			return nil, err
		}
		if sub.RecordedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("backblast %s recorded_at: %w", sub.ID, err)
		}
		if err := decodeLists(&sub, pn, pi, npn, npi); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM backblast").Scan(&n); err != nil {
		return 0, fmt.Errorf("count backblast: %w", err)
	}
	return n, nil
}

func (s *Store) LoadVenues(ctx context.Context) (model.VenueTable, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT label, identity, category, region, weekday, lat, lon FROM ao_info ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("query ao_info: %w", err)
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var (
			v        model.Venue
			weekday  sql.NullInt64
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&v.Label, &v.Identity, &v.Category, &v.Region, &weekday, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan ao_info: %w", err)
		}
		if weekday.Valid {
			d := int(weekday.Int64)
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

const upsertVenue = `INSERT INTO ao_info (label, identity, category, region, weekday, lat, lon)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(label) DO UPDATE SET
	identity = excluded.identity, category = excluded.category, region = excluded.region,
	weekday = excluded.weekday, lat = excluded.lat, lon = excluded.lon`

func (s *Store) UpsertVenues(ctx context.Context, venues []model.Venue) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertVenue)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range venues {
		identity := v.Identity
		if identity == "" {
			identity = v.Label
		}
		if _, err = stmt.ExecContext(ctx, v.Label, identity, v.Category, v.Region,
			nullInt(v.Weekday), nullFloat(v.Lat), nullFloat(v.Lon)); err != nil {
			return fmt.Errorf("upsert venue %s: %w", v.Label, err)
		}
	}
	return tx.Commit()
}

func encodeLists(sub model.Submission) ([4]string, error) {
	var out [4]string
	for i, list := range [][]string{sub.ParticipantNames, sub.ParticipantIDs, sub.NewParticipantNames, sub.NewParticipantIDs} {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return out, fmt.Errorf("encode backblast %s: %w", sub.ID, err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func decodeLists(sub *model.Submission, pn, pi, npn, npi string) error {
	targets := []*[]string{&sub.ParticipantNames, &sub.ParticipantIDs, &sub.NewParticipantNames, &sub.NewParticipantIDs}
	for i, raw := range []string{pn, pi, npn, npi} {
		if err := json.Unmarshal([]byte(raw), targets[i]); err != nil {
			return fmt.Errorf("decode backblast %s: %w", sub.ID, err)
		}
	}
	return nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
