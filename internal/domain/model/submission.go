// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date layout used on the wire and in reports.
const DateLayout = "2006-01-02"

// Submission is one backblast as reported through the form.
//
// ParticipantNames/ParticipantIDs and NewParticipantNames/NewParticipantIDs
// are positionally paired: index i is the same person in both slices.
// EventDateOriginal never changes once set; EventDate is rewritten at most
// once by date correction.
type Submission struct {
	ID                string    `json:"id"`
	EventDate         time.Time `json:"event_date"`
	EventDateOriginal time.Time `json:"event_date_original"`

	VenueLabel     string `json:"venue_label"`
	VenueChannelID string `json:"venue_channel_id,omitempty"`

	// Filled by venue resolution.
	VenueIdentity string   `json:"venue_identity,omitempty"`
	VenueCategory string   `json:"venue_category,omitempty"`
	VenueRegion   string   `json:"venue_region,omitempty"`
	VenueWeekday  *int     `json:"venue_weekday,omitempty"`
	VenueLat      *float64 `json:"venue_lat,omitempty"`
	VenueLon      *float64 `json:"venue_lon,omitempty"`

	// Filled by date correction.
	Weekday     int    `json:"weekday"`
	WeekdayName string `json:"weekday_name,omitempty"`

	OrganizerName string `json:"organizer_name"`
	OrganizerID   string `json:"organizer_id,omitempty"`

	ParticipantNames    []string `json:"participant_names"`
	ParticipantIDs      []string `json:"participant_ids"`
	NewParticipantNames []string `json:"new_participant_names"`
	NewParticipantIDs   []string `json:"new_participant_ids"`

	UnregisteredParticipants string `json:"unregistered_participants,omitempty"`
	VisitingCount            int    `json:"visiting_count"`
	Summary                  string `json:"summary,omitempty"`

	SubmittedByName string    `json:"submitted_by_name"`
	SubmittedByID   string    `json:"submitted_by_id"`
	TeamID          string    `json:"team_id,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Clone returns a deep copy so pipeline stages never share slices or pointers.
func (s Submission) Clone() Submission {
	c := s
	c.ParticipantNames = slices.Clone(s.ParticipantNames)
	c.ParticipantIDs = slices.Clone(s.ParticipantIDs)
	c.NewParticipantNames = slices.Clone(s.NewParticipantNames)
	c.NewParticipantIDs = slices.Clone(s.NewParticipantIDs)
	if s.VenueWeekday != nil {
		v := *s.VenueWeekday
		c.VenueWeekday = &v
	}
	if s.VenueLat != nil {
		v := *s.VenueLat
		c.VenueLat = &v
	}
	if s.VenueLon != nil {
		v := *s.VenueLon
		c.VenueLon = &v
	}
	return c
}

// OrganizerKey identifies the organizer for grouping: the id when present,
// otherwise the display name.
func (s Submission) OrganizerKey() string {
	if s.OrganizerID != "" {
		return s.OrganizerID
	}
	return s.OrganizerName
}

// Validate checks the structural invariants of a submission.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrMissingID
	}
	if s.EventDate.IsZero() {
		return fmt.Errorf("%w: %s", ErrMissingDate, s.ID)
	}
	if len(s.ParticipantNames) != len(s.ParticipantIDs) {
		return fmt.Errorf("%w: %s has %d participant names and %d ids",
			ErrPositionMismatch, s.ID, len(s.ParticipantNames), len(s.ParticipantIDs))
	}
	if len(s.NewParticipantNames) != len(s.NewParticipantIDs) {
		return fmt.Errorf("%w: %s has %d new participant names and %d ids",
			ErrPositionMismatch, s.ID, len(s.NewParticipantNames), len(s.NewParticipantIDs))
	}
	if s.VisitingCount < 0 {
		return fmt.Errorf("%w: %s visiting count %d", ErrNegativeCount, s.ID, s.VisitingCount)
	}
	if s.VenueWeekday != nil && (*s.VenueWeekday < 0 || *s.VenueWeekday > 6) {
		return fmt.Errorf("%w: %s weekday %d", ErrWeekdayRange, s.ID, *s.VenueWeekday)
	}
	return nil
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return t, nil
}

// ParseCount reads a participant count typed into the form. A trailing "+"
// is accepted ("10+" is 10); anything unreadable or negative counts as 0.
func ParseCount(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "+")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
