package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/adapters/mq/queue"
	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/domain/dispatch"
	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/registry"
	"github.com/okian/stomp/pkg/logger"
)

type call struct {
	broadcast bool
	frame     message.Type
	identity  string
	role      model.Role
	msg       message.Outbound
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  bool
}

func (r *recorder) SendToIdentity(_ context.Context, m message.Outbound, identity string, role model.Role) (registry.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{frame: m.Type(), identity: identity, role: role, msg: m})
	if r.fail {
		return registry.Delivery{Targets: 1, Failed: 1}, registry.ErrDeliveryFailure
	}
	return registry.Delivery{Targets: 1, Delivered: 1}, nil
}

func (r *recorder) BroadcastToRole(_ context.Context, m message.Outbound, role model.Role) (registry.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{broadcast: true, frame: m.Type(), role: role, msg: m})
	return registry.Delivery{}, nil
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// inline runs every job before Submit returns.
type inline struct{ errs []error }

func (i *inline) Submit(ctx context.Context, j queue.Job) bool {
	i.errs = append(i.errs, j.Run(ctx))
	return true
}

type refusing struct{}

func (refusing) Submit(context.Context, queue.Job) bool { return false }

// slowAlerts delays every alert delivery so a later job could overtake it.
type slowAlerts struct{ *recorder }

func (s slowAlerts) SendToIdentity(ctx context.Context, m message.Outbound, identity string, role model.Role) (registry.Delivery, error) {
	if m.Type() == message.TypeEmergencyAlert {
		time.Sleep(30 * time.Millisecond)
	}
	return s.recorder.SendToIdentity(ctx, m, identity, role)
}

type sideChannel struct {
	mu   sync.Mutex
	seen []string
}

func (s *sideChannel) EmergencyRaised(_ context.Context, rec model.EmergencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, rec.ID)
	return nil
}

func active(id string) model.EmergencyRecord {
	return model.EmergencyRecord{
		ID:          id,
		Kind:        model.KindCardiacAnomaly,
		SubjectID:   "ath-1",
		SubjectName: "Sam Doe",
		DetectedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:      model.StatusActive,
	}
}

func TestRaise(t *testing.T) {
	Convey("Given a dispatcher over a recording registry", t, func() {
		ctx := context.Background()
		rec := &recorder{}
		run := &inline{}
		side := &sideChannel{}
		ledger := repository.NewMemoryLedger(repository.WithLogger(logger.Nop()))
		d := dispatch.New(rec, run, ledger, dispatch.WithLogger(logger.Nop()), dispatch.WithSideChannel(side))

		Convey("When an active record is raised", func() {
			So(d.Raise(ctx, active("em-1")), ShouldBeNil)
			calls := rec.snapshot()

			Convey("Then exactly four delivery actions happen", func() {
				So(calls, ShouldHaveLength, 4)
				So(calls[0].broadcast, ShouldBeFalse)
				So(calls[0].identity, ShouldEqual, "ath-1")
				So(calls[0].role, ShouldEqual, model.RoleAthlete)
				roles := []model.Role{calls[1].role, calls[2].role, calls[3].role}
				So(roles, ShouldResemble, []model.Role{model.RoleCoach, model.RoleReferee, model.RoleTeammate})
			})

			Convey("Then the athlete and the responders get different wording", func() {
				subject := calls[0].msg.(message.EmergencyAlert)
				responder := calls[1].msg.(message.EmergencyAlert)
				So(subject.Message, ShouldEqual, "Medical emergency detected. Help is on the way.")
				So(responder.Message, ShouldContainSubstring, "Sam Doe")
				So(responder.Data.ID, ShouldEqual, "em-1")
			})

			Convey("Then the side channel hears about it after the fan-out", func() {
				So(side.seen, ShouldResemble, []string{"em-1"})
				So(run.errs, ShouldHaveLength, 2)
			})
		})

		Convey("When the athlete's send fails", func() {
			rec.fail = true
			So(d.Raise(ctx, active("em-2")), ShouldBeNil)

			Convey("Then the broadcasts still happen and the job reports the failure", func() {
				So(rec.snapshot(), ShouldHaveLength, 4)
				So(errors.Is(run.errs[0], registry.ErrDeliveryFailure), ShouldBeTrue)
			})
		})

		Convey("When the record is not active", func() {
			r := active("em-3")
			r.Status = model.StatusResolved
			err := d.Raise(ctx, r)

			Convey("Then nothing is sent", func() {
				So(errors.Is(err, dispatch.ErrInvalidRecord), ShouldBeTrue)
				So(rec.snapshot(), ShouldBeEmpty)
			})
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a ledger with one active emergency", t, func() {
		ctx := context.Background()
		rec := &recorder{}
		ledger := repository.NewMemoryLedger(repository.WithLogger(logger.Nop()))
		_, err := ledger.Create(ctx, active("em-1"))
		So(err, ShouldBeNil)
		d := dispatch.New(rec, &inline{}, ledger, dispatch.WithLogger(logger.Nop()))
		coach := model.Actor{ID: "coach-1", Role: model.RoleCoach}

		Convey("When it is resolved", func() {
			out, err := d.Resolve(ctx, "em-1", coach)

			Convey("Then the record is returned resolved and everyone is told", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, model.StatusResolved)
				So(out.ResolvedBy.ID, ShouldEqual, "coach-1")

				calls := rec.snapshot()
				So(calls, ShouldHaveLength, 4)
				So(calls[0].identity, ShouldEqual, "ath-1")
				for _, c := range calls {
					So(c.frame, ShouldEqual, message.TypeEmergencyResolved)
				}
			})

			Convey("Then resolving again fails without sending", func() {
				_, err := d.Resolve(ctx, "em-1", coach)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(rec.snapshot(), ShouldHaveLength, 4)
			})
		})
	})
}

func TestRespond(t *testing.T) {
	Convey("Given a ledger with one active emergency", t, func() {
		ctx := context.Background()
		rec := &recorder{}
		ledger := repository.NewMemoryLedger(repository.WithLogger(logger.Nop()))
		_, err := ledger.Create(ctx, active("em-1"))
		So(err, ShouldBeNil)
		d := dispatch.New(rec, &inline{}, ledger, dispatch.WithLogger(logger.Nop()))
		teammate := model.Actor{ID: "tm-1", Role: model.RoleTeammate}
		eta := 2.4

		Convey("When a teammate responds without naming the athlete", func() {
			ack, err := d.Respond(ctx, teammate, message.EmergencyResponse{EmergencyID: "em-1", ETA: &eta})

			Convey("Then the ack is stored and relayed to athlete, coaches and referees", func() {
				So(err, ShouldBeNil)
				So(ack.Status, ShouldEqual, "responding")
				So(*ack.ETA, ShouldEqual, 2)

				stored, _ := ledger.Get(ctx, "em-1")
				So(stored.Responders, ShouldHaveLength, 1)

				calls := rec.snapshot()
				So(calls, ShouldHaveLength, 3)
				So(calls[0].identity, ShouldEqual, "ath-1")
				So(calls[1].role, ShouldEqual, model.RoleCoach)
				So(calls[2].role, ShouldEqual, model.RoleReferee)
			})
		})

		Convey("When the emergency is unknown and no athlete is named", func() {
			_, err := d.Respond(ctx, teammate, message.EmergencyResponse{EmergencyID: "gone"})

			Convey("Then only coaches and referees are told", func() {
				So(err, ShouldBeNil)
				calls := rec.snapshot()
				So(calls, ShouldHaveLength, 2)
				So(calls[0].broadcast, ShouldBeTrue)
			})
		})
	})
}

func TestFallback(t *testing.T) {
	Convey("Given a runner that refuses every job", t, func() {
		rec := &recorder{}
		d := dispatch.New(rec, refusing{}, repository.NewMemoryLedger(repository.WithLogger(logger.Nop())),
			dispatch.WithLogger(logger.Nop()))

		Convey("When an emergency is raised", func() {
			So(d.Raise(context.Background(), active("em-1")), ShouldBeNil)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(d.Wait(ctx), ShouldBeNil)

			Convey("Then the alert is still delivered", func() {
				So(rec.snapshot(), ShouldHaveLength, 4)
			})
		})

		Convey("When a raise and its resolution are both refused", func() {
			ctx := context.Background()
			slow := &recorder{}
			ledger := repository.NewMemoryLedger(repository.WithLogger(logger.Nop()))
			d := dispatch.New(slowAlerts{slow}, refusing{}, ledger, dispatch.WithLogger(logger.Nop()))
			created, err := ledger.Create(ctx, active("em-2"))
			So(err, ShouldBeNil)
			So(d.Raise(ctx, created), ShouldBeNil)
			_, err = d.Resolve(ctx, "em-2", model.Actor{ID: "c-1", Role: model.RoleCoach})
			So(err, ShouldBeNil)
			waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			So(d.Wait(waitCtx), ShouldBeNil)

			Convey("Then the alert still goes out before the resolution", func() {
				calls := slow.snapshot()
				So(calls, ShouldHaveLength, 8)
				for i, c := range calls {
					want := message.TypeEmergencyAlert
					if i >= 4 {
						want = message.TypeEmergencyResolved
					}
					So(c.frame, ShouldEqual, want)
				}
			})
		})
	})
}
