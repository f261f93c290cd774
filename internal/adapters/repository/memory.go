package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// MemoryStore keeps everything in process memory. Reporting tables are
// swapped under one lock, so readers see either the old pair or the new one.
type MemoryStore struct {
	mu     sync.RWMutex
	subs   []model.Submission
	index  map[string]int
	venues []model.Venue
	tables map[string]report.Table
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		index:  make(map[string]int),
		tables: make(map[string]report.Table),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Backend = (*MemoryStore)(nil)

func (s *MemoryStore) Save(ctx context.Context, sub model.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.index[sub.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, sub.ID)
	}
	s.index[sub.ID] = len(s.subs)
	s.subs = append(s.subs, sub.Clone())
	return nil
}

func (s *MemoryStore) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Submission, len(s.subs))
	for i, sub := range s.subs {
		out[i] = sub.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs), nil
}

func (s *MemoryStore) LoadVenues(ctx context.Context) (model.VenueTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.NewVenueTable(s.venues), nil
}

// UpsertVenues replaces rows with the same label and appends new ones.
func (s *MemoryStore) UpsertVenues(_ context.Context, venues []model.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range venues {
		i := slices.IndexFunc(s.venues, func(cur model.Venue) bool { return cur.Label == v.Label })
		if i >= 0 {
			s.venues[i] = v
			continue
		}
		s.venues = append(s.venues, v)
	}
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, tables ...report.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	staged := make(map[string]report.Table, len(tables))
	for _, t := range tables {
		staged[t.Name] = copyTable(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for name, t := range staged {
		s.tables[name] = t
	}
	return nil
}

func (s *MemoryStore) Table(_ context.Context, name string) (report.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return report.Table{}, fmt.Errorf("%w: table %s", ErrNotFound, name)
	}
	return copyTable(t), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyTable(t report.Table) report.Table {
	c := report.Table{Name: t.Name, Columns: slices.Clone(t.Columns)}
	c.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		c.Rows[i] = slices.Clone(row)
	}
	return c
}
