package reshape

import (
	"time"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

type nameSighting struct {
	name string
	at   time.Time
	pos  int
}

// LatestNames maps every persistent identifier used as organizer,
// participant or new participant to its most recently submitted display
// name. Blank names and blank identifiers are ignored.
func LatestNames(records []model.Submission) map[string]string {
	latest := make(map[string]nameSighting)
	see := func(id, name string, at time.Time, pos int) {
		if id == "" || name == "" {
			return
		}
		cur, ok := latest[id]
		if ok && at.Before(cur.at) {
			return
		}
		if ok && at.Equal(cur.at) && pos < cur.pos {
			return
		}
		latest[id] = nameSighting{name: name, at: at, pos: pos}
	}

	for i, r := range records {
		see(r.OrganizerID, r.OrganizerName, r.RecordedAt, i)
		for j, id := range r.ParticipantIDs {
			if j < len(r.ParticipantNames) {
				see(id, r.ParticipantNames[j], r.RecordedAt, i)
			}
		}
		for j, id := range r.NewParticipantIDs {
			if j < len(r.NewParticipantNames) {
				see(id, r.NewParticipantNames[j], r.RecordedAt, i)
			}
		}
	}

	names := make(map[string]string, len(latest))
	for id, s := range latest {
		names[id] = s.name
	}
	return names
}

// ResolveNames rewrites every occurrence of an identifier's name to its
// latest display name. It returns the rewritten records and how many names
// changed.
func ResolveNames(records []model.Submission) ([]model.Submission, int) {
	names := LatestNames(records)
	rewrite := func(id string, name *string) int {
		resolved, ok := names[id]
		if !ok || resolved == *name {
			return 0
		}
		*name = resolved
		return 1
	}

	out := make([]model.Submission, len(records))
	changed := 0
	for i, r := range records {
		c := r.Clone()
		changed += rewrite(c.OrganizerID, &c.OrganizerName)
		for j, id := range c.ParticipantIDs {
			if j < len(c.ParticipantNames) {
				changed += rewrite(id, &c.ParticipantNames[j])
			}
		}
		for j, id := range c.NewParticipantIDs {
			if j < len(c.NewParticipantNames) {
				changed += rewrite(id, &c.NewParticipantNames[j])
			}
		}
		out[i] = c
	}
	return out, changed
}
