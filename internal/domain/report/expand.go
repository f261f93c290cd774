package report

import (
	"strconv"
	"strings"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// Person is one attendee of an event.
type Person struct {
	ID   string
	Name string
}

func (p Person) key() string {
	if p.ID != "" {
		return p.ID
	}
	return "name:" + p.Name
}

// People returns the distinct attendees of r: the organizer, then
// participants, then new participants. An identifier appears once even when
// listed in several roles; entries without an identifier are told apart by
// name. Entries with neither are skipped.
func People(r model.Submission) []Person {
	seen := make(map[string]struct{})
	var out []Person
	add := func(id, name string) {
		p := Person{ID: strings.TrimSpace(id), Name: name}
		if p.ID == "" && strings.TrimSpace(p.Name) == "" {
			return
		}
		if _, ok := seen[p.key()]; ok {
			return
		}
		seen[p.key()] = struct{}{}
		out = append(out, p)
	}

	add(r.OrganizerID, r.OrganizerName)
	for i, id := range r.ParticipantIDs {
		add(id, at(r.ParticipantNames, i))
	}
	for i, id := range r.NewParticipantIDs {
		add(id, at(r.NewParticipantNames, i))
	}
	return out
}

// NewParticipantCount is the number of distinct new participants in r.
func NewParticipantCount(r model.Submission) int {
	seen := make(map[string]struct{})
	for i, id := range r.NewParticipantIDs {
		p := Person{ID: strings.TrimSpace(id), Name: at(r.NewParticipantNames, i)}
		if p.ID == "" && strings.TrimSpace(p.Name) == "" {
			continue
		}
		seen[p.key()] = struct{}{}
	}
	return len(seen)
}

// PersonTable expands each record into one row per distinct attendee. A
// record with nobody listed still yields one row with placeholder person
// columns.
func PersonTable(name string, records []model.Submission) Table {
	t := Table{Name: name, Columns: PersonColumns}
	for _, r := range records {
		people := People(r)
		shared := sharedCells(r, len(people))
		if len(people) == 0 {
			people = []Person{{}}
		}
		for _, p := range people {
			row := make([]any, 0, len(PersonColumns))
			row = append(row, shared[:4]...)
			row = append(row, text(p.Name), text(p.ID))
			row = append(row, shared[4:]...)
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// EventTable emits one row per record with attendee lists collapsed to counts.
func EventTable(name string, records []model.Submission) Table {
	t := Table{Name: name, Columns: EventColumns}
	for _, r := range records {
		t.Rows = append(t.Rows, sharedCells(r, len(People(r))))
	}
	return t
}

// sharedCells returns the event-level values in EventColumns order.
func sharedCells(r model.Submission, paxCount int) []any {
	return []any{
		r.EventDate.Format(DateLayout),
		text(r.OrganizerName),
		text(r.VenueIdentity),
		paxCount,
		NewParticipantCount(r),
		text(r.UnregisteredParticipants),
		max(r.VisitingCount, 0),
		coord(r.VenueLat),
		coord(r.VenueLon),
		text(r.SubmittedByName),
		text(r.SubmittedByID),
		text(r.ID),
		timestamp(r),
		text(r.VenueRegion),
		text(r.OrganizerID),
		text(r.WeekdayName),
		r.Weekday,
	}
}

func text(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func coord(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func timestamp(r model.Submission) string {
	if r.RecordedAt.IsZero() {
		return Placeholder
	}
	return r.RecordedAt.UTC().Format(TimestampLayout)
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
