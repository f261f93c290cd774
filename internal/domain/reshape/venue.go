package reshape

import (
	"strings"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

// DefaultVenueLabel stands in for an empty venue label before lookup.
const DefaultVenueLabel = "1stf"

// ResolveVenues sets the canonical venue identity and reference attributes on
// each record. A label missing from the table keeps the raw label as its
// identity and has no category, region, weekday or coordinates. A weekday
// outside 0-6 is treated as absent. It returns
// the resolved records and how many of them missed the table.
func ResolveVenues(records []model.Submission, table model.VenueTable, defaultLabel string) ([]model.Submission, int) {
	if defaultLabel == "" {
		defaultLabel = DefaultVenueLabel
	}

	out := make([]model.Submission, len(records))
	misses := 0
	for i, r := range records {
		c := r.Clone()
		label := strings.TrimSpace(c.VenueLabel)
		if label == "" {
			label = defaultLabel
		}

		c.VenueCategory, c.VenueRegion = "", ""
		c.VenueWeekday, c.VenueLat, c.VenueLon = nil, nil, nil

		v, ok := table.Lookup(label)
		if !ok {
			c.VenueIdentity = label
			misses++
			out[i] = c
			continue
		}

		c.VenueIdentity = v.Identity
		if c.VenueIdentity == "" {
			c.VenueIdentity = label
		}
		c.VenueCategory = v.Category
		c.VenueRegion = v.Region
		if v.Weekday != nil && model.ValidWeekday(*v.Weekday) {
			wd := *v.Weekday
			c.VenueWeekday = &wd
		}
		if v.Lat != nil {
			lat := *v.Lat
			c.VenueLat = &lat
		}
		if v.Lon != nil {
			lon := *v.Lon
			c.VenueLon = &lon
		}
		out[i] = c
	}
	return out, misses
}
