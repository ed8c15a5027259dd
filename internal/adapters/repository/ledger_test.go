package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newLedger(opts ...repository.Option) *repository.MemoryLedger {
	return repository.NewMemoryLedger(append([]repository.Option{repository.WithLogger(logger.Nop())}, opts...)...)
}

func record(id, subject string) model.EmergencyRecord {
	return model.EmergencyRecord{ID: id, Kind: model.KindCardiacAnomaly, SubjectID: subject, SubjectName: "Athlete " + subject}
}

var coach = model.Actor{ID: "C1", Role: model.RoleCoach}

func TestLedgerLifecycle(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		ctx := context.Background()
		l := newLedger(repository.WithShards(4))

		Convey("When a record is created", func() {
			created, err := l.Create(ctx, record("E1", "A1"))
			So(err, ShouldBeNil)

			Convey("Then it is active and readable", func() {
				So(created.Status, ShouldEqual, model.StatusActive)
				So(created.DetectedAt.IsZero(), ShouldBeFalse)
				got, err := l.Get(ctx, "E1")
				So(err, ShouldBeNil)
				So(got.SubjectID, ShouldEqual, "A1")
				So(l.ListActive(ctx), ShouldHaveLength, 1)
				So(l.Count(ctx), ShouldEqual, 1)
			})

			Convey("And creating the same id again fails", func() {
				_, err := l.Create(ctx, record("E1", "A2"))
				So(errors.Is(err, repository.ErrDuplicateID), ShouldBeTrue)
			})

			Convey("And resolving twice yields success then not-found", func() {
				res, err := l.Resolve(ctx, "E1", coach)
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusResolved)
				So(*res.ResolvedBy, ShouldResemble, coach)

				_, err = l.Resolve(ctx, "E1", coach)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(l.ListActive(ctx), ShouldBeEmpty)

				_, err = l.Get(ctx, "E1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				Convey("And the resolved record stays in the history", func() {
					hist, err := l.Lookup(ctx, "E1")
					So(err, ShouldBeNil)
					So(hist.Status, ShouldEqual, model.StatusResolved)
					So(l.ListResolved(ctx, 0), ShouldHaveLength, 1)

					_, err = l.Create(ctx, record("E1", "A1"))
					So(errors.Is(err, repository.ErrDuplicateID), ShouldBeTrue)
				})
			})

			Convey("And mutating the returned copy does not touch the ledger", func() {
				created.SubjectName = "changed"
				got, _ := l.Get(ctx, "E1")
				So(got.SubjectName, ShouldEqual, "Athlete A1")
			})
		})

		Convey("When a record is incomplete", func() {
			_, err := l.Create(ctx, model.EmergencyRecord{ID: "E2"})
			So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When looking up unknown ids", func() {
			_, err := l.Get(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = l.Resolve(ctx, "missing", coach)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = l.Lookup(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestLedgerResponders(t *testing.T) {
	Convey("Given an active emergency", t, func() {
		ctx := context.Background()
		l := newLedger()
		_, err := l.Create(ctx, record("E1", "A1"))
		So(err, ShouldBeNil)

		Convey("When responders acknowledge", func() {
			eta := 2
			_, err := l.AddResponder(ctx, "E1", model.ResponderAck{Responder: coach, Status: "responding", ETA: &eta})
			So(err, ShouldBeNil)
			rec, err := l.AddResponder(ctx, "E1", model.ResponderAck{Responder: model.Actor{ID: "R1", Role: model.RoleReferee}, Status: "on_scene"})
			So(err, ShouldBeNil)

			Convey("Then they are kept in order", func() {
				So(rec.Responders, ShouldHaveLength, 2)
				So(rec.Responders[0].Responder, ShouldResemble, coach)
				So(rec.Responders[1].At.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When finding by athlete", func() {
			rec, ok := l.ActiveForSubject(ctx, "A1")
			So(ok, ShouldBeTrue)
			So(rec.ID, ShouldEqual, "E1")
			_, ok = l.ActiveForSubject(ctx, "A2")
			So(ok, ShouldBeFalse)
		})

		Convey("When acknowledging a resolved emergency", func() {
			_, _ = l.Resolve(ctx, "E1", coach)
			_, err := l.AddResponder(ctx, "E1", model.ResponderAck{Responder: coach})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestLedgerHistoryBound(t *testing.T) {
	Convey("Given a ledger that keeps two resolved records", t, func() {
		ctx := context.Background()
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		l := newLedger(repository.WithHistorySize(2), repository.WithClock(func() time.Time { return clock }))

		for i := 1; i <= 3; i++ {
			id := fmt.Sprintf("E%d", i)
			_, err := l.Create(ctx, record(id, "A"+id))
			So(err, ShouldBeNil)
			_, err = l.Resolve(ctx, id, coach)
			So(err, ShouldBeNil)
		}

		Convey("Then the oldest is evicted and the newest comes first", func() {
			resolved := l.ListResolved(ctx, 10)
			So(resolved, ShouldHaveLength, 2)
			So(resolved[0].ID, ShouldEqual, "E3")
			So(resolved[1].ID, ShouldEqual, "E2")
			_, err := l.Lookup(ctx, "E1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(l.ListResolved(ctx, 1), ShouldHaveLength, 1)
		})
	})
}

func TestLedgerConcurrentResolve(t *testing.T) {
	Convey("Given one active record and N concurrent resolvers", t, func() {
		ctx := context.Background()
		l := newLedger()
		_, err := l.Create(ctx, record("E1", "A1"))
		So(err, ShouldBeNil)

		const n = 64
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			wins     int
			notFound int
		)
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Resolve(ctx, "E1", coach)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, repository.ErrNotFound):
					notFound++
				}
			}()
		}
		close(start)
		wg.Wait()

		Convey("Then exactly one wins and the record is gone", func() {
			So(wins, ShouldEqual, 1)
			So(notFound, ShouldEqual, n-1)
			So(l.ListActive(ctx), ShouldBeEmpty)
			So(l.Count(ctx), ShouldEqual, 0)
		})
	})
}

func TestLedgerCreateUnlessActive(t *testing.T) {
	Convey("Given many goroutines raising for one athlete at once", t, func() {
		ctx := context.Background()
		l := newLedger(repository.WithShards(8))

		const callers = 32
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			ids     = map[string]bool{}
		)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				rec, ok, err := l.CreateUnlessActive(ctx, record(fmt.Sprintf("E%d", i), "A1"))
				if err != nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[rec.ID] = true
				if ok {
					created++
				}
			}(i)
		}
		close(start)
		wg.Wait()

		Convey("Then exactly one record is created and everyone sees it", func() {
			So(created, ShouldEqual, 1)
			So(ids, ShouldHaveLength, 1)
			So(l.Count(ctx), ShouldEqual, 1)
		})

		Convey("Then another athlete is unaffected", func() {
			_, ok, err := l.CreateUnlessActive(ctx, record("E-other", "A2"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("Then a new record is allowed once the first is resolved", func() {
			active, found := l.ActiveForSubject(ctx, "A1")
			So(found, ShouldBeTrue)
			_, err := l.Resolve(ctx, active.ID, coach)
			So(err, ShouldBeNil)
			rec, ok, err := l.CreateUnlessActive(ctx, record("E-next", "A1"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(rec.ID, ShouldEqual, "E-next")
		})
	})

	Convey("Given an invalid record", t, func() {
		_, ok, err := newLedger().CreateUnlessActive(context.Background(), model.EmergencyRecord{ID: "E1"})
		So(ok, ShouldBeFalse)
		So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
	})
}
