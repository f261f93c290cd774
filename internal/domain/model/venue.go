package model

import (
	"sort"
	"strings"
)

// Venue is one row of the reference venue table.
type Venue struct {
	Label    string   `json:"label" yaml:"label"`
	Identity string   `json:"identity" yaml:"identity"`
	Category string   `json:"category" yaml:"category"`
	Region   string   `json:"region" yaml:"region"`
	Weekday  *int     `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Lat      *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// VenueTable maps a raw venue label to its reference row.
type VenueTable map[string]Venue

// NewVenueTable indexes venues by label. Later rows replace earlier ones
// with the same label; rows without a label are skipped.
func NewVenueTable(venues []Venue) VenueTable {
	t := make(VenueTable, len(venues))
	for _, v := range venues {
		label := strings.TrimSpace(v.Label)
		if label == "" {
			continue
		}
		v.Label = label
		if v.Identity == "" {
			v.Identity = label
		}
		t[label] = v
	}
	return t
}

// ValidWeekday reports whether d is a weekday number, 0=Sunday..6=Saturday.
func ValidWeekday(d int) bool { return d >= 0 && d <= 6 }

// BadWeekdays returns the labels whose weekday is set but out of range,
// sorted.
func (t VenueTable) BadWeekdays() []string {
	var labels []string
	for label, v := range t {
		if v.Weekday != nil && !ValidWeekday(*v.Weekday) {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Lookup returns the reference row for label.
func (t VenueTable) Lookup(label string) (Venue, bool) {
	v, ok := t[label]
	return v, ok
}
