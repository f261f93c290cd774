package report

// Column keys shared by both tables.
const (
	ColDate          = "date"
	ColQ             = "q"
	ColAO            = "ao"
	ColPaxCount      = "pax_count"
	ColPax           = "pax"
	ColPaxID         = "pax_id"
	ColFNGCount      = "fng_count"
	ColPaxNoSlack    = "pax_no_slack"
	ColVisitingCount = "visiting_count"
	ColLat           = "ao_lat"
	ColLon           = "ao_lon"
	ColSubmitter     = "submitter"
	ColSubmitterID   = "submitter_id"
	ColBackblastID   = "backblast_id"
	ColBackblastTS   = "backblast_ts"
	ColRegion        = "region"
	ColQID           = "q_id"
	ColDayOfWeek     = "day_of_week"
	ColDayOfWeekInt  = "day_of_week_int"
)

// PersonColumns is the person-level layout. Order and labels are read by the
// existing sheets and validation checkpoints.
var PersonColumns = []Column{
	{Key: ColDate, Label: "Date"},
	{Key: ColQ, Label: "Q"},
	{Key: ColAO, Label: "AO"},
	{Key: ColPaxCount, Label: "PAX (count)", Kind: KindInt},
	{Key: ColPax, Label: "PAX Name"},
	{Key: ColPaxID, Label: "PAX Slack ID"},
	{Key: ColFNGCount, Label: "FNGs (count)", Kind: KindInt},
	{Key: ColPaxNoSlack, Label: "PAX Not in Slack"},
	{Key: ColVisitingCount, Label: "Visitng PAX (count)", Kind: KindInt}, // spelling matches the live sheet
	{Key: ColLat, Label: "ao_lat"},
	{Key: ColLon, Label: "ao_lon"},
	{Key: ColSubmitter, Label: "Submitter"},
	{Key: ColSubmitterID, Label: "Submitter ID"},
	{Key: ColBackblastID, Label: "Backblast ID"},
	{Key: ColBackblastTS, Label: "Backblast Timestamp"},
	{Key: ColRegion, Label: "Region"},
	{Key: ColQID, Label: "Q ID"},
	{Key: ColDayOfWeek, Label: "Day of Week"},
	{Key: ColDayOfWeekInt, Label: "Day of Week - Int", Kind: KindInt},
}

// EventColumns is PersonColumns without the per-person columns.
var EventColumns = func() []Column {
	out := make([]Column, 0, len(PersonColumns)-2)
	for _, c := range PersonColumns {
		if c.Key == ColPax || c.Key == ColPaxID {
			continue
		}
		out = append(out, c)
	}
	return out
}()
