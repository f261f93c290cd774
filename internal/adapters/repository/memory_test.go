package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := NewMemoryStore()
		sub := model.Submission{
			ID:             "bb-1",
			EventDate:      model.Date(2024, time.March, 4),
			ParticipantIDs: []string{"P1"}, ParticipantNames: []string{"Anvil"},
		}

		Convey("Saved submissions come back in insertion order", func() {
			So(s.Save(ctx, model.Submission{ID: "bb-2"}), ShouldBeNil)
			So(s.Save(ctx, sub), ShouldBeNil)

			got, err := s.ListSubmissions(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].ID, ShouldEqual, "bb-2")
			So(got[1].ID, ShouldEqual, "bb-1")

			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})

		Convey("A repeated id is a duplicate", func() {
			So(s.Save(ctx, sub), ShouldBeNil)
			So(errors.Is(s.Save(ctx, sub), ErrDuplicate), ShouldBeTrue)
		})

		Convey("Listed submissions do not alias stored ones", func() {
			So(s.Save(ctx, sub), ShouldBeNil)
			got, _ := s.ListSubmissions(ctx)
			got[0].ParticipantIDs[0] = "changed"

			again, _ := s.ListSubmissions(ctx)
			So(again[0].ParticipantIDs[0], ShouldEqual, "P1")
		})

		Convey("Closed stores refuse work", func() {
			So(s.Close(), ShouldBeNil)
			So(s.Save(ctx, sub), ShouldEqual, ErrClosed)
			_, err := s.ListSubmissions(ctx)
			So(err, ShouldEqual, ErrClosed)
		})
	})

	Convey("Given a store seeded with venues", t, func() {
		s := NewMemoryStore(WithVenues(model.Venue{Label: "the-forge", Category: "1stf"}))

		Convey("Upsert replaces by label and appends new labels", func() {
			So(s.UpsertVenues(ctx, []model.Venue{
				{Label: "the-forge", Category: "3rdf"},
				{Label: "the-pit", Category: "1stf"},
			}), ShouldBeNil)

			table, err := s.LoadVenues(ctx)
			So(err, ShouldBeNil)
			So(table, ShouldHaveLength, 2)
			So(table["the-forge"].Category, ShouldEqual, "3rdf")
			So(table["the-pit"].Identity, ShouldEqual, "the-pit")
		})
	})

	Convey("Given reporting tables", t, func() {
		s := NewMemoryStore()
		cols := []report.Column{{Key: "date", Label: "Date"}}
		pax := report.Table{Name: "pax", Columns: cols, Rows: [][]any{{"2024-03-04"}}}
		ao := report.Table{Name: "ao", Columns: cols, Rows: [][]any{{"2024-03-04"}}}

		Convey("Unwritten tables are not found", func() {
			_, err := s.Table(ctx, "pax")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Replace writes every table", func() {
			So(s.Replace(ctx, pax, ao), ShouldBeNil)
			got, err := s.Table(ctx, "ao")
			So(err, ShouldBeNil)
			So(got.Rows, ShouldResemble, ao.Rows)
		})

		Convey("A cancelled replace changes nothing", func() {
			So(s.Replace(ctx, pax), ShouldBeNil)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			changed := report.Table{Name: "pax", Columns: cols, Rows: [][]any{{"2024-03-05"}}}
			So(s.Replace(cancelled, changed), ShouldNotBeNil)

			got, _ := s.Table(ctx, "pax")
			So(got.Rows, ShouldResemble, pax.Rows)
		})
	})
}

func TestQuoteIdent(t *testing.T) {
	Convey("QuoteIdent wraps plain names and refuses quotes", t, func() {
		q, err := QuoteIdent("__PROCESSED_PAX")
		So(err, ShouldBeNil)
		So(q, ShouldEqual, `"__PROCESSED_PAX"`)

		_, err = QuoteIdent(`x"y`)
		So(errors.Is(err, ErrBadIdentifier), ShouldBeTrue)
		_, err = QuoteIdent("")
		So(errors.Is(err, ErrBadIdentifier), ShouldBeTrue)
	})
}
