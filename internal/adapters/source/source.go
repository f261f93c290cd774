// Package source defines where the pipeline reads its inputs from and
// provides the YAML file venue loader.
package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// Submissions yields every stored submission in insertion order.
type Submissions interface {
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
}

// Venues yields the reference venue table.
type Venues interface {
	LoadVenues(ctx context.Context) (model.VenueTable, error)
}

// FileVenues reads the venue table from a YAML file on every load.
type FileVenues struct {
	path string
}

// NewFileVenues returns a loader for path.
func NewFileVenues(path string) *FileVenues {
	return &FileVenues{path: path}
}

type venueFile struct {
	Venues []model.Venue `yaml:"venues"`
}

func (f *FileVenues) LoadVenues(ctx context.Context) (model.VenueTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	venues, err := f.Venues()
	if err != nil {
		return nil, err
	}
	return model.NewVenueTable(venues), nil
}

// Venues parses the file in file order without building the lookup table.
func (f *FileVenues) Venues() ([]model.Venue, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read venue file: %w", err)
	}
	var doc venueFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse venue file %s: %w", f.path, err)
	}
	for i, v := range doc.Venues {
		if v.Weekday != nil && !model.ValidWeekday(*v.Weekday) {
			return nil, fmt.Errorf("%w: venue %d (%s) weekday %d", model.ErrWeekdayRange, i, v.Label, *v.Weekday)
		}
	}
	return doc.Venues, nil
}
