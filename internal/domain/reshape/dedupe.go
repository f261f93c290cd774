package reshape

import (
	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// EventKey groups submissions describing the same workout.
type EventKey struct {
	Date      string
	Organizer string
	Venue     string
}

// KeyOf returns the grouping key of a resolved, date-corrected record.
func KeyOf(r model.Submission) EventKey {
	return EventKey{
		Date:      r.EventDate.Format(model.DateLayout),
		Organizer: r.OrganizerKey(),
		Venue:     r.VenueIdentity,
	}
}

// Deduplicate keeps one record per EventKey: the latest by RecordedAt, the
// later slice position on a tie. Other records of the group are dropped, not
// merged. Survivors keep their input order. It returns the survivors and how
// many records were dropped.
func Deduplicate(records []model.Submission) ([]model.Submission, int) {
	winner := make(map[EventKey]int, len(records))
	for i, r := range records {
		k := KeyOf(r)
		cur, ok := winner[k]
		if ok && r.RecordedAt.Before(records[cur].RecordedAt) {
			continue
		}
		winner[k] = i
	}

	out := make([]model.Submission, 0, len(winner))
	for i, r := range records {
		if winner[KeyOf(r)] == i {
			out = append(out, r.Clone())
		}
	}
	return out, len(records) - len(out)
}
