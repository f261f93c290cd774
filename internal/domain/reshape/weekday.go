package reshape

import (
	"time"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

const daysPerWeek = 7

// WeekdayShift returns how many days to add to a date falling on observed so
// it lands on expected. Both use 0=Sunday..6=Saturday. The result is the
// smallest move in [-3, 3]; a three-day gap resolves to the earlier date.
func WeekdayShift(observed, expected int) int {
	diff := ((observed-expected)%daysPerWeek + daysPerWeek) % daysPerWeek
	if diff > daysPerWeek/2 {
		diff -= daysPerWeek
	}
	return -diff
}

// CorrectDates moves each event date onto its venue's expected weekday and
// records the weekday of the result. Records without an expected weekday keep
// their date and report the observed weekday; an expected weekday outside
// 0-6 counts as absent. The shift is always computed from EventDateOriginal,
// so running the stage again changes nothing. It returns the corrected
// records and how many dates moved.
func CorrectDates(records []model.Submission) ([]model.Submission, int) {
	out := make([]model.Submission, len(records))
	moved := 0
	for i, r := range records {
		c := r.Clone()
		if c.EventDateOriginal.IsZero() {
			c.EventDateOriginal = c.EventDate
		}
		base := c.EventDateOriginal
		observed := int(base.Weekday())

		if c.VenueWeekday == nil || !model.ValidWeekday(*c.VenueWeekday) {
			c.VenueWeekday = nil
			c.EventDate = base
			c.Weekday = observed
		} else {
			shift := WeekdayShift(observed, *c.VenueWeekday)
			c.EventDate = base.AddDate(0, 0, shift)
			c.Weekday = *c.VenueWeekday
			if shift != 0 {
				moved++
			}
		}
		c.WeekdayName = time.Weekday(c.Weekday).String()
		out[i] = c
	}
	return out, moved
}
