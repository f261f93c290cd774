// Package repository stores backblast submissions, the reference venue table
// and the materialized reporting tables.
package repository

import (
	"context"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// Store persists submissions. ListSubmissions returns them in insertion
// order, which the pipeline relies on to break recorded_at ties.
type Store interface {
	// Save inserts s. It returns ErrDuplicate when s.ID is already stored.
	Save(ctx context.Context, s model.Submission) error
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// VenueStore reads and maintains the reference venue table.
type VenueStore interface {
	LoadVenues(ctx context.Context) (model.VenueTable, error)
	UpsertVenues(ctx context.Context, venues []model.Venue) error
}

// TableStore replaces and reads back reporting tables.
type TableStore interface {
	// Replace swaps the content of every named table in one step; on error
	// none of them change.
	Replace(ctx context.Context, tables ...report.Table) error
	// Table returns a reporting table as last written. It returns
	// ErrNotFound if it was never written.
	Table(ctx context.Context, name string) (report.Table, error)
}

// Backend is everything a database-backed deployment provides.
type Backend interface {
	Store
	VenueStore
	TableStore
}
