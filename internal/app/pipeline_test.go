package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

func ptr[T any](v T) *T { return &v }

func fixtureVenues() []model.Venue {
	return []model.Venue{
		{Label: "the-forge", Identity: "The Forge", Category: "1stf", Region: "peak",
			Weekday: ptr(1), Lat: ptr(39.5), Lon: ptr(-104.8)},
		{Label: "the-pit", Identity: "The Pit", Category: "3rdf", Region: "peak"},
	}
}

// fixtureSubmissions covers a weekday correction, a re-submitted event, a
// renamed participant, a filtered category, a venue miss and an empty event.
func fixtureSubmissions() []model.Submission {
	return []model.Submission{
		{
			ID: "bb-1", EventDate: model.Date(2024, time.March, 5), VenueLabel: "the-forge",
			OrganizerName: "Quill", OrganizerID: "Q1",
			ParticipantNames: []string{"Anvil"}, ParticipantIDs: []string{"P1"},
			SubmittedByName: "Quill", SubmittedByID: "Q1",
			RecordedAt: time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC),
		},
		{
			ID: "bb-2", EventDate: model.Date(2024, time.March, 4), VenueLabel: "the-forge",
			OrganizerName: "Quill", OrganizerID: "Q1",
			ParticipantNames: []string{"Anvil", "Bolt"}, ParticipantIDs: []string{"P1", "P2"},
			NewParticipantNames: []string{"Chalk"}, NewParticipantIDs: []string{"N1"},
			UnregisteredParticipants: "Dave", VisitingCount: 2,
			SubmittedByName: "Quill", SubmittedByID: "Q1",
			RecordedAt: time.Date(2024, time.March, 5, 8, 0, 0, 500_000_000, time.UTC),
		},
		{
			ID: "bb-3", EventDate: model.Date(2024, time.March, 6), VenueLabel: "the-pit",
			OrganizerName: "Bolty", OrganizerID: "P2",
			SubmittedByName: "Bolty", SubmittedByID: "P2",
			RecordedAt: time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "bb-4", EventDate: model.Date(2024, time.March, 7),
			OrganizerName: "Zed", OrganizerID: "Q3",
			SubmittedByName: "Zed", SubmittedByID: "Q3",
			RecordedAt: time.Date(2024, time.March, 7, 6, 0, 0, 0, time.UTC),
		},
		{
			ID: "bb-5", EventDate: model.Date(2024, time.March, 11), VenueLabel: "the-forge",
			SubmittedByName: "Eve", SubmittedByID: "U9",
			RecordedAt: time.Date(2024, time.March, 11, 6, 15, 0, 0, time.UTC),
		},
	}
}

func newFixtureStore() *repository.MemoryStore {
	return repository.NewMemoryStore(
		repository.WithVenues(fixtureVenues()...),
		repository.WithSubmissions(fixtureSubmissions()...),
	)
}

func csvOf(t report.Table) []byte {
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, t); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type failingSink struct {
	err   error
	calls int
}

func (f *failingSink) Replace(context.Context, ...report.Table) error {
	f.calls++
	return f.err
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSink) Replace(ctx context.Context, _ ...report.Table) error {
	close(b.entered)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given the fixture submissions in a memory store", t, func() {
		store := newFixtureStore()
		p := NewPipeline(store, store, store)

		Convey("A run writes both tables matching the golden files", func() {
			res, err := p.Run(ctx)
			So(err, ShouldBeNil)

			So(res.Stages.Loaded, ShouldEqual, 5)
			So(res.Stages.VenueMisses, ShouldEqual, 1)
			So(res.Stages.DatesCorrected, ShouldEqual, 1)
			So(res.Stages.NamesResolved, ShouldEqual, 1)
			So(res.Stages.Duplicates, ShouldEqual, 1)
			So(res.Stages.Excluded, ShouldEqual, 2)
			So(res.Stages.Kept, ShouldEqual, 2)
			So(res.PersonRows, ShouldEqual, 5)
			So(res.EventRows, ShouldEqual, 2)

			person, err := store.Table(ctx, DefaultPersonTable)
			So(err, ShouldBeNil)
			event, err := store.Table(ctx, DefaultEventTable)
			So(err, ShouldBeNil)

			g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
			g.Assert(t, "person_table", csvOf(person))
			g.Assert(t, "event_table", csvOf(event))

			last, ok := p.LastResult()
			So(ok, ShouldBeTrue)
			So(last.PersonRows, ShouldEqual, 5)
		})

		Convey("Running twice produces byte-identical tables", func() {
			_, err := p.Run(ctx)
			So(err, ShouldBeNil)
			first, _ := store.Table(ctx, DefaultPersonTable)
			firstEvents, _ := store.Table(ctx, DefaultEventTable)

			_, err = p.Run(ctx)
			So(err, ShouldBeNil)
			second, _ := store.Table(ctx, DefaultPersonTable)
			secondEvents, _ := store.Table(ctx, DefaultEventTable)

			So(bytes.Equal(csvOf(first), csvOf(second)), ShouldBeTrue)
			So(bytes.Equal(csvOf(firstEvents), csvOf(secondEvents)), ShouldBeTrue)
		})

		Convey("A dry run returns the tables without writing them", func() {
			res, tables, err := p.DryRun(ctx)
			So(err, ShouldBeNil)
			So(res.DryRun, ShouldBeTrue)
			So(tables, ShouldHaveLength, 2)
			_, err = store.Table(ctx, DefaultPersonTable)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, ok := p.LastResult()
			So(ok, ShouldBeFalse)
		})

		Convey("An empty target category keeps every venue", func() {
			p := NewPipeline(store, store, store, WithTargetCategory(""), WithTables("pax", "ao"))
			res, err := p.Run(ctx)
			So(err, ShouldBeNil)
			So(res.Stages.Excluded, ShouldEqual, 0)
			So(res.EventRows, ShouldEqual, 4)
		})
	})

	Convey("Given the single walk-through submission at an unknown venue", t, func() {
		store := repository.NewMemoryStore(repository.WithSubmissions(model.Submission{
			ID: "bb-brk", EventDate: model.Date(2021, time.October, 20), VenueLabel: "brk",
			OrganizerName: "Torpedo", OrganizerID: "Q1",
			ParticipantNames:         []string{"Banjo", "Parker", "Torpedo"},
			ParticipantIDs:           []string{"P1", "P2", "Q1"},
			VisitingCount:            5,
			UnregisteredParticipants: "what_a_guy",
			RecordedAt:               time.Date(2021, time.October, 20, 7, 0, 0, 0, time.UTC),
		}))
		p := NewPipeline(store, store, store, WithTargetCategory(""))

		Convey("One row per distinct identifier shares the event values", func() {
			res, err := p.Run(ctx)
			So(err, ShouldBeNil)
			So(res.Stages.VenueMisses, ShouldEqual, 1)

			person, err := store.Table(ctx, DefaultPersonTable)
			So(err, ShouldBeNil)
			So(person.Rows, ShouldHaveLength, 3)

			var names []string
			for _, row := range person.Rows {
				So(row[0], ShouldEqual, "2021-10-20")
				So(row[2], ShouldEqual, "brk")
				So(row[3], ShouldEqual, 3)
				So(row[7], ShouldEqual, "what_a_guy")
				So(row[8], ShouldEqual, 5)
				So(row[9], ShouldEqual, report.Placeholder)
				names = append(names, row[4].(string))
			}
			So(names, ShouldResemble, []string{"Torpedo", "Banjo", "Parker"})

			// no expected weekday at an unknown venue, so the date stays a Wednesday
			So(person.Rows[0][17], ShouldEqual, "Wednesday")
			So(person.Rows[0][18], ShouldEqual, 3)
		})
	})
}

func TestPipelineFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given tables already written by a good run", t, func() {
		store := newFixtureStore()
		_, err := NewPipeline(store, store, store).Run(ctx)
		So(err, ShouldBeNil)
		before, _ := store.Table(ctx, DefaultPersonTable)

		Convey("A failing sink leaves them untouched", func() {
			bad := &failingSink{err: sink.Permanent(errors.New("403"))}
			_, err := NewPipeline(store, store, bad).Run(ctx)
			So(errors.Is(err, ErrSink), ShouldBeTrue)
			So(errors.Is(err, sink.ErrPermanent), ShouldBeTrue)
			So(bad.calls, ShouldEqual, 1)

			after, _ := store.Table(ctx, DefaultPersonTable)
			So(after.Rows, ShouldResemble, before.Rows)
		})

		Convey("A transient failure is retried and then succeeds", func() {
			flaky := &flakyThenStore{fails: 2, next: store}
			out := sink.WithRetry(flaky, "memory", sink.WithAttempts(3), sink.WithBackoff(time.Millisecond))
			_, err := NewPipeline(store, store, out).Run(ctx)
			So(err, ShouldBeNil)
			So(flaky.calls, ShouldEqual, 3)
		})

		Convey("A source failure aborts before any write", func() {
			bad := &failingSink{}
			_, err := NewPipeline(brokenSource{}, store, bad).Run(ctx)
			So(errors.Is(err, ErrSource), ShouldBeTrue)
			So(bad.calls, ShouldEqual, 0)
		})

		Convey("A cancelled context writes nothing", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			bad := &failingSink{}
			_, err := NewPipeline(store, store, bad).Run(cancelled)
			So(err, ShouldNotBeNil)
			So(bad.calls, ShouldEqual, 0)
		})
	})

	Convey("Given a run blocked in the sink", t, func() {
		store := newFixtureStore()
		blocked := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
		p := NewPipeline(store, store, blocked)

		var wg sync.WaitGroup
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, firstErr = p.Run(ctx)
		}()
		<-blocked.entered

		Convey("A second run is refused", func() {
			_, err := p.Run(ctx)
			So(errors.Is(err, ErrRunInProgress), ShouldBeTrue)

			close(blocked.release)
			wg.Wait()
			So(firstErr, ShouldBeNil)
		})
	})
}

type brokenSource struct{}

func (brokenSource) ListSubmissions(context.Context) ([]model.Submission, error) {
	return nil, errors.New("connection refused")
}

type flakyThenStore struct {
	fails int
	calls int
	next  *repository.MemoryStore
}

func (f *flakyThenStore) Replace(ctx context.Context, tables ...report.Table) error {
	f.calls++
	if f.calls <= f.fails {
		return sink.Transient(errors.New("503"))
	}
	return f.next.Replace(ctx, tables...)
}

func TestPipelineBadVenueWeekday(t *testing.T) {
	ctx := context.Background()

	for _, weekday := range []int{-1, 7} {
		Convey("Given a stored venue with weekday out of range", t, func() {
			store := repository.NewMemoryStore(
				repository.WithVenues(
					model.Venue{Label: "good", Category: "1stf", Weekday: ptr(1)},
					model.Venue{Label: "bad", Category: "1stf", Weekday: ptr(weekday)},
				),
				repository.WithSubmissions(
					model.Submission{
						ID: "g", EventDate: model.Date(2024, time.March, 5), VenueLabel: "good",
						OrganizerName: "Quill", OrganizerID: "Q1",
						RecordedAt: time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC),
					},
					model.Submission{
						ID: "b", EventDate: model.Date(2024, time.March, 5), VenueLabel: "bad",
						OrganizerName: "Zed", OrganizerID: "Q3",
						RecordedAt: time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC),
					},
				),
			)

			res, err := NewPipeline(store, store, store).Run(ctx)

			Convey("Then the run succeeds and the bad weekday is ignored", func() {
				So(err, ShouldBeNil)
				So(res.Stages.BadWeekdays, ShouldEqual, 1)
				So(res.EventRows, ShouldEqual, 2)

				events, err := store.Table(ctx, DefaultEventTable)
				So(err, ShouldBeNil)
				idx := map[string]int{}
				for i, k := range events.Keys() {
					idx[k] = i
				}
				rows := events.StringRows()
				So(rows[0][idx[report.ColDate]], ShouldEqual, "2024-03-04")
				So(rows[0][idx[report.ColDayOfWeekInt]], ShouldEqual, "1")
				So(rows[1][idx[report.ColDate]], ShouldEqual, "2024-03-05")
				So(rows[1][idx[report.ColDayOfWeek]], ShouldEqual, "Tuesday")
				So(rows[1][idx[report.ColDayOfWeekInt]], ShouldEqual, "2")
			})
		})
	}
}
