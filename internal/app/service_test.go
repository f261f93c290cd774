package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

type postRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (p *postRecorder) Post(_ context.Context, s model.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, s.ID)
	return nil
}

func (p *postRecorder) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

type failOnceStore struct {
	*repository.MemoryStore
	mu     sync.Mutex
	failed bool
}

func (f *failOnceStore) Save(ctx context.Context, s model.Submission) error {
	f.mu.Lock()
	if !f.failed {
		f.failed = true
		f.mu.Unlock()
		return errors.New("disk full")
	}
	f.mu.Unlock()
	return f.MemoryStore.Save(ctx, s)
}

func backblast(id string) model.Submission {
	return model.Submission{
		ID:               id,
		EventDate:        model.Date(2024, time.March, 4),
		VenueLabel:       "the-forge",
		OrganizerName:    "Quill",
		OrganizerID:      "Q1",
		ParticipantNames: []string{"Anvil"},
		ParticipantIDs:   []string{"P1"},
		SubmittedByName:  "Quill",
		SubmittedByID:    "Q1",
		RecordedAt:       time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC),
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that has not been started", t, func() {
		svc := New()

		Convey("Submit is refused", func() {
			_, err := svc.Submit(ctx, backblast("bb-1"))
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		store := repository.NewMemoryStore()
		posts := &postRecorder{}
		svc := New(WithWorkerCount(2), WithQueueSize(16), WithStore(store), WithNotifier(posts))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Each id is stored and posted once", func() {
			dup, err := svc.Submit(ctx, backblast("bb-1"))
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			dup, err = svc.Submit(ctx, backblast("bb-1"))
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			_, err = svc.Submit(ctx, backblast("bb-2"))
			So(err, ShouldBeNil)

			So(svc.Stop(ctx), ShouldBeNil)

			subs, err := store.ListSubmissions(ctx)
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, 2)
			So(subs[0].EventDateOriginal, ShouldEqual, subs[0].EventDate)
			So(posts.ids(), ShouldHaveLength, 2)
		})

		Convey("A malformed submission is rejected and not remembered", func() {
			bad := backblast("bb-3")
			bad.ParticipantIDs = nil
			_, err := svc.Submit(ctx, bad)
			So(errors.Is(err, ErrInvalidSubmission), ShouldBeTrue)
			So(errors.Is(err, model.ErrPositionMismatch), ShouldBeTrue)

			dup, err := svc.Submit(ctx, backblast("bb-3"))
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Stats report the configuration", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 16)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a store that fails the first write", t, func() {
		store := &failOnceStore{MemoryStore: repository.NewMemoryStore()}
		svc := New(WithWorkerCount(1), WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("The id is forgotten so a resubmission is accepted", func() {
			_, err := svc.Submit(ctx, backblast("bb-9"))
			So(err, ShouldBeNil)

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				n, _ := store.Count(ctx)
				if n > 0 {
					break
				}
				_, err = svc.Submit(ctx, backblast("bb-9"))
				So(err, ShouldBeNil)
				time.Sleep(10 * time.Millisecond)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			n, err := store.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}
