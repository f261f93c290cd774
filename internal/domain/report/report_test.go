package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
	. "github.com/smartystreets/goconvey/convey"
)

func brk() model.Submission {
	return model.Submission{
		ID:                       "bb-1",
		EventDate:                model.Date(2021, time.October, 20),
		EventDateOriginal:        model.Date(2021, time.October, 20),
		VenueLabel:               "brk",
		VenueIdentity:            "brk",
		OrganizerName:            "Torpedo",
		OrganizerID:              "Q1",
		ParticipantNames:         []string{"Banjo", "Parker", "Torpedo"},
		ParticipantIDs:           []string{"P1", "P2", "Q1"},
		UnregisteredParticipants: "what_a_guy",
		VisitingCount:            5,
		SubmittedByName:          "Torpedo",
		SubmittedByID:            "Q1",
		RecordedAt:               time.Date(2021, time.October, 20, 7, 15, 4, 123456000, time.UTC),
		Weekday:                  3,
		WeekdayName:              "Wednesday",
	}
}

func column(t report.Table, key string) int {
	for i, c := range t.Columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

func TestPeople(t *testing.T) {
	Convey("Given an organizer who is also listed as a participant", t, func() {
		people := report.People(brk())

		Convey("Then each identifier appears once, organizer first", func() {
			So(people, ShouldResemble, []report.Person{
				{ID: "Q1", Name: "Torpedo"},
				{ID: "P1", Name: "Banjo"},
				{ID: "P2", Name: "Parker"},
			})
		})
	})

	Convey("Given new participants overlapping participants", t, func() {
		r := brk()
		r.NewParticipantNames = []string{"Parker", "Ghost", ""}
		r.NewParticipantIDs = []string{"P2", "", ""}

		Convey("Then overlaps collapse and name-only entries count once", func() {
			So(len(report.People(r)), ShouldEqual, 4)
			So(report.NewParticipantCount(r), ShouldEqual, 2)
		})
	})
}

func TestPersonTable(t *testing.T) {
	Convey("Given the end-to-end brk submission", t, func() {
		table := report.PersonTable("pax", []model.Submission{brk()})

		Convey("Then there is one row per distinct person", func() {
			So(len(table.Rows), ShouldEqual, 3)
			So(table.Name, ShouldEqual, "pax")
		})

		Convey("Then shared columns repeat on every row", func() {
			for _, row := range table.Rows {
				So(len(row), ShouldEqual, len(report.PersonColumns))
				So(row[column(table, report.ColDate)], ShouldEqual, "2021-10-20")
				So(row[column(table, report.ColAO)], ShouldEqual, "brk")
				So(row[column(table, report.ColPaxCount)], ShouldEqual, 3)
				So(row[column(table, report.ColVisitingCount)], ShouldEqual, 5)
				So(row[column(table, report.ColPaxNoSlack)], ShouldEqual, "what_a_guy")
				So(row[column(table, report.ColFNGCount)], ShouldEqual, 0)
			}
		})

		Convey("Then missing values use the placeholder and timestamps keep microseconds", func() {
			row := table.Rows[0]
			So(row[column(table, report.ColLat)], ShouldEqual, report.Placeholder)
			So(row[column(table, report.ColRegion)], ShouldEqual, report.Placeholder)
			So(row[column(table, report.ColBackblastTS)], ShouldEqual, "2021-10-20T07:15:04.123456")
			So(row[column(table, report.ColPax)], ShouldEqual, "Torpedo")
			So(row[column(table, report.ColPaxID)], ShouldEqual, "Q1")
			So(row[column(table, report.ColDayOfWeek)], ShouldEqual, "Wednesday")
			So(row[column(table, report.ColDayOfWeekInt)], ShouldEqual, 3)
		})
	})

	Convey("Given organizer O with participants A and B where O is not listed", t, func() {
		r := brk()
		r.ParticipantNames = []string{"A", "B"}
		r.ParticipantIDs = []string{"A1", "B1"}

		Convey("Then rows never exceed distinct identifiers", func() {
			table := report.PersonTable("pax", []model.Submission{r})
			So(len(table.Rows), ShouldEqual, 3)
		})
	})

	Convey("Given a record with nobody listed", t, func() {
		r := brk()
		r.OrganizerID, r.OrganizerName = "", ""
		r.ParticipantNames, r.ParticipantIDs = nil, nil

		table := report.PersonTable("pax", []model.Submission{r})

		Convey("Then a single placeholder row keeps the event visible", func() {
			So(len(table.Rows), ShouldEqual, 1)
			So(table.Rows[0][column(table, report.ColPax)], ShouldEqual, report.Placeholder)
			So(table.Rows[0][column(table, report.ColPaxCount)], ShouldEqual, 0)
			So(table.Rows[0][column(table, report.ColQ)], ShouldEqual, report.Placeholder)
		})
	})
}

func TestEventTable(t *testing.T) {
	Convey("Given two events", t, func() {
		a := brk()
		b := brk()
		b.ID = "bb-2"
		lat, lon := 35.7796, -78.6382
		b.VenueLat, b.VenueLon = &lat, &lon

		table := report.EventTable("ao", []model.Submission{a, b})

		Convey("Then each event is one row without person columns", func() {
			So(len(table.Rows), ShouldEqual, 2)
			So(column(table, report.ColPax), ShouldEqual, -1)
			So(column(table, report.ColPaxID), ShouldEqual, -1)
			So(len(table.Rows[0]), ShouldEqual, len(report.EventColumns))
			So(table.Rows[1][column(table, report.ColLat)], ShouldEqual, "35.7796")
			So(table.Rows[1][column(table, report.ColLon)], ShouldEqual, "-78.6382")
			So(table.Rows[0][column(table, report.ColPaxCount)], ShouldEqual, 3)
		})
	})
}

func TestLayout(t *testing.T) {
	Convey("Given the person layout", t, func() {
		Convey("Then the leading labels keep their order", func() {
			So(report.Table{Columns: report.PersonColumns}.Header()[:6], ShouldResemble, []string{
				"Date", "Q", "AO", "PAX (count)", "PAX Name", "PAX Slack ID",
			})
			So(len(report.EventColumns), ShouldEqual, len(report.PersonColumns)-2)
		})
	})
}

func TestWriteCSV(t *testing.T) {
	Convey("Given a small table", t, func() {
		table := report.Table{
			Columns: []report.Column{{Key: "a", Label: "A"}, {Key: "n", Label: "N", Kind: report.KindInt}},
			Rows:    [][]any{{"x,y", 2}, {nil, 3}},
		}
		var buf bytes.Buffer
		err := report.WriteCSV(&buf, table)

		Convey("Then the header and quoted cells are written", func() {
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "A,N\n\"x,y\",2\n_,3\n")
			So(table.Keys(), ShouldResemble, []string{"a", "n"})
		})
	})
}
