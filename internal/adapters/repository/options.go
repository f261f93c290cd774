package repository

import "github.com/f3peakcity/f3-bot/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithVenues seeds the reference venue table.
func WithVenues(venues ...model.Venue) Option {
	return func(s *MemoryStore) {
		s.venues = append(s.venues, venues...)
	}
}

// WithSubmissions seeds stored submissions in the given order.
func WithSubmissions(subs ...model.Submission) Option {
	return func(s *MemoryStore) {
		for _, sub := range subs {
			if _, ok := s.index[sub.ID]; ok {
				continue
			}
			s.index[sub.ID] = len(s.subs)
			s.subs = append(s.subs, sub.Clone())
		}
	}
}
