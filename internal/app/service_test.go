package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/adapters/repository"
	service "github.com/okian/stomp/internal/app"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/config"
	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to      []string
	subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DatabaseDriver = repository.DriverSQLite
	cfg.DatabaseDSN = ":memory:"
	cfg.WorkerCount = 2
	cfg.QueueSize = 64
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	opts = append([]service.Option{service.WithLogger(logger.Nop())}, opts...)
	svc := service.New(testConfig(), opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func register(t *testing.T, svc *service.Service, email string, role model.Role) model.Actor {
	t.Helper()
	u, err := svc.Register(context.Background(), auth.RegisterRequest{
		Email:    email,
		Password: "correct horse",
		FullName: "User " + string(role),
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u.Actor()
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestLifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig(), service.WithLogger(logger.Nop()))

		Convey("Then ping reports it is not started", func() {
			So(errors.Is(svc.Ping(ctx), service.ErrNotStarted), ShouldBeTrue)
			So(svc.Stats().Started, ShouldBeFalse)
		})

		Convey("When it starts and stops", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Ping(ctx), ShouldBeNil)
			stats := svc.Stats()

			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then stats reflected the running components", func() {
				So(stats.Started, ShouldBeTrue)
				So(stats.Workers, ShouldEqual, 2)
				So(stats.QueueCapacity, ShouldBeGreaterThan, 0)
				So(svc.Stats().Started, ShouldBeFalse)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a config with an unsupported driver", t, func() {
		cfg := testConfig()
		cfg.DatabaseDriver = "mysql"
		svc := service.New(cfg, service.WithLogger(logger.Nop()))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrStart), ShouldBeTrue)
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})
}

func TestAccounts(t *testing.T) {
	Convey("Given a running service with one coach", t, func() {
		ctx := context.Background()
		svc := startService(t)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)

		Convey("When the coach logs in", func() {
			sess, err := svc.Login(ctx, auth.LoginRequest{Email: "coach@example.com", Password: "correct horse"})

			Convey("Then a bearer token for the coach is issued", func() {
				So(err, ShouldBeNil)
				So(sess.TokenType, ShouldEqual, types.TokenType)
				So(sess.ExpiresIn, ShouldBeGreaterThan, 0)
				claims, err := svc.Parse(sess.AccessToken)
				So(err, ShouldBeNil)
				So(claims.Actor(), ShouldResemble, coach)
			})
		})

		Convey("When the password is wrong or the email unknown", func() {
			_, wrong := svc.Login(ctx, auth.LoginRequest{Email: "coach@example.com", Password: "nope nope"})
			_, unknown := svc.Login(ctx, auth.LoginRequest{Email: "ghost@example.com", Password: "correct horse"})

			Convey("Then both fail the same way", func() {
				So(errors.Is(wrong, auth.ErrInvalidCredentials), ShouldBeTrue)
				So(errors.Is(unknown, auth.ErrInvalidCredentials), ShouldBeTrue)
			})
		})

		Convey("When the email is registered again", func() {
			_, err := svc.Register(ctx, auth.RegisterRequest{
				Email: "coach@example.com", Password: "another one", FullName: "Dup", Role: "coach",
			})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrEmailTaken), ShouldBeTrue)
			})
		})

		Convey("When registering with an unknown role", func() {
			_, err := svc.Register(ctx, auth.RegisterRequest{
				Email: "x@example.com", Password: "long enough", FullName: "X", Role: "physio",
			})

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestEmergencies(t *testing.T) {
	Convey("Given a running service with every role registered", t, func() {
		ctx := context.Background()
		mailer := &fakeMailer{}
		svc := startService(t, service.WithMailer(mailer))
		athlete := register(t, svc, "athlete@example.com", model.RoleAthlete)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)
		referee := register(t, svc, "ref@example.com", model.RoleReferee)

		Convey("When an athlete triggers naming someone else", func() {
			rec, err := svc.TriggerEmergency(ctx, athlete, types.TriggerRequest{AthleteID: "somebody-else"})

			Convey("Then the emergency is about the athlete", func() {
				So(err, ShouldBeNil)
				So(rec.SubjectID, ShouldEqual, athlete.ID)
				So(rec.SubjectName, ShouldEqual, "User athlete")
				So(rec.Status, ShouldEqual, model.StatusActive)
				So(rec.Location.Description, ShouldEqual, "Unknown location")
				So(*rec.InitiatedBy, ShouldResemble, athlete)
			})

			Convey("Then it is listed as active", func() {
				active := svc.ActiveEmergencies(ctx)
				So(active, ShouldHaveLength, 1)
				So(active[0].ID, ShouldEqual, rec.ID)
			})

			Convey("Then coaches and referees get an inbox entry and an email", func() {
				So(waitFor(func() bool {
					ns, _ := svc.Notifications(ctx, coach, false, 0)
					return len(ns) == 1
				}), ShouldBeTrue)
				So(waitFor(func() bool { return len(mailer.Sent()) == 1 }), ShouldBeTrue)
				So(mailer.Sent()[0].to, ShouldContain, "coach@example.com")
				So(mailer.Sent()[0].to, ShouldContain, "ref@example.com")
				So(mailer.Sent()[0].subject, ShouldNotBeEmpty)

				ns, err := svc.Notifications(ctx, athlete, false, 0)
				So(err, ShouldBeNil)
				So(ns, ShouldBeEmpty)
			})

			Convey("And the athlete tries to resolve it", func() {
				_, err := svc.ResolveEmergency(ctx, athlete, rec.ID)

				Convey("Then it is forbidden", func() {
					So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
				})
			})

			Convey("And a referee resolves it", func() {
				resolved, err := svc.ResolveEmergency(ctx, referee, rec.ID)
				So(err, ShouldBeNil)

				Convey("Then it leaves the active set", func() {
					So(resolved.Status, ShouldEqual, model.StatusResolved)
					So(*resolved.ResolvedBy, ShouldResemble, referee)
					So(svc.ActiveEmergencies(ctx), ShouldBeEmpty)
					_, err := svc.Emergency(ctx, rec.ID)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})

				Convey("Then resolving again reports not found", func() {
					_, err := svc.ResolveEmergency(ctx, coach, rec.ID)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})

				Convey("Then a report can still be generated", func() {
					report, err := svc.GenerateReport(ctx, coach, types.ReportRequest{EmergencyID: rec.ID, Notes: "AED used"})
					So(err, ShouldBeNil)
					So(report.EmergencyID, ShouldEqual, rec.ID)
					So(report.Status, ShouldEqual, model.StatusResolved)

					stored, err := svc.Report(ctx, referee, report.ID)
					So(err, ShouldBeNil)
					So(stored.ID, ShouldEqual, report.ID)

					_, err = svc.Reports(ctx, athlete, 10)
					So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
				})
			})
		})

		Convey("When a coach triggers without naming an athlete", func() {
			_, err := svc.TriggerEmergency(ctx, coach, types.TriggerRequest{})

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When a report is requested for an unknown emergency", func() {
			_, err := svc.GenerateReport(ctx, coach, types.ReportRequest{EmergencyID: "missing"})

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSimulations(t *testing.T) {
	Convey("Given a running service on a controllable clock", t, func() {
		ctx := context.Background()
		clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
		svc := startService(t, service.WithClock(clk.Now))
		athlete := register(t, svc, "athlete@example.com", model.RoleAthlete)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)
		other := register(t, svc, "other@example.com", model.RoleCoach)

		req := types.SimulationRequest{AthleteID: athlete.ID, AthleteName: "Sam"}

		Convey("When an athlete starts a drill", func() {
			_, err := svc.StartSimulation(ctx, athlete, req)

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When a coach starts a drill", func() {
			sim, err := svc.StartSimulation(ctx, coach, req)
			So(err, ShouldBeNil)

			Convey("Then it is placed on the training field", func() {
				So(sim.IsSimulation(), ShouldBeTrue)
				So(sim.Location.Description, ShouldEqual, "Training Field")
				So(sim.Location.HasCoordinates(), ShouldBeTrue)
				So(sim.Vitals.AnomalyType, ShouldEqual, "Ventricular Fibrillation")
			})

			Convey("Then only its owner sees it", func() {
				mine, err := svc.ActiveSimulations(ctx, coach)
				So(err, ShouldBeNil)
				So(mine, ShouldHaveLength, 1)

				theirs, err := svc.ActiveSimulations(ctx, other)
				So(err, ShouldBeNil)
				So(theirs, ShouldBeEmpty)

				_, err = svc.Simulation(ctx, other, sim.ID)
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})

			Convey("Then another coach cannot end it", func() {
				_, err := svc.EndSimulation(ctx, other, sim.ID)
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})

			Convey("And the owner ends it ninety seconds later", func() {
				clk.Advance(90 * time.Second)
				ended, err := svc.EndSimulation(ctx, coach, sim.ID)

				Convey("Then the duration is reported", func() {
					So(err, ShouldBeNil)
					So(ended.DurationSeconds, ShouldEqual, 90.0)
					So(ended.Simulation.Status, ShouldEqual, model.StatusResolved)
				})

				Convey("Then it can still be looked up", func() {
					got, err := svc.Simulation(ctx, coach, sim.ID)
					So(err, ShouldBeNil)
					So(got.Status, ShouldEqual, model.StatusResolved)
				})
			})
		})

		Convey("When a real emergency is addressed as a drill", func() {
			rec, err := svc.TriggerEmergency(ctx, athlete, types.TriggerRequest{})
			So(err, ShouldBeNil)
			_, getErr := svc.Simulation(ctx, coach, rec.ID)
			_, endErr := svc.EndSimulation(ctx, coach, rec.ID)

			Convey("Then it is hidden", func() {
				So(errors.Is(getErr, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(endErr, repository.ErrNotFound), ShouldBeTrue)
				So(svc.ActiveEmergencies(ctx), ShouldHaveLength, 1)
			})
		})
	})
}

func TestIngestReading(t *testing.T) {
	Convey("Given a running service with an athlete", t, func() {
		ctx := context.Background()
		svc := startService(t)
		athlete := register(t, svc, "athlete@example.com", model.RoleAthlete)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)

		Convey("When a normal reading arrives", func() {
			res, err := svc.IngestReading(ctx, athlete, anomaly.Reading{ID: "r-1", HeartRate: 72, OxygenSaturation: 98, RespiratoryRate: 14})

			Convey("Then nothing is raised", func() {
				So(err, ShouldBeNil)
				So(res.Assessment.Anomalous, ShouldBeFalse)
				So(res.EmergencyID, ShouldBeEmpty)
				So(svc.ActiveEmergencies(ctx), ShouldBeEmpty)
			})
		})

		Convey("When two anomalous readings arrive", func() {
			first, err := svc.IngestReading(ctx, athlete, anomaly.Reading{ID: "r-2", HeartRate: 195, OxygenSaturation: 97})
			So(err, ShouldBeNil)
			second, err := svc.IngestReading(ctx, athlete, anomaly.Reading{ID: "r-3", HeartRate: 200, OxygenSaturation: 96})
			So(err, ShouldBeNil)

			Convey("Then only one emergency is raised", func() {
				So(first.EmergencyID, ShouldNotBeEmpty)
				So(second.EmergencyID, ShouldEqual, first.EmergencyID)
				active := svc.ActiveEmergencies(ctx)
				So(active, ShouldHaveLength, 1)
				So(active[0].SubjectID, ShouldEqual, athlete.ID)
				So(active[0].Vitals.HeartRate, ShouldEqual, 195)
			})
		})

		Convey("When anomalous readings for one athlete arrive concurrently", func() {
			const n = 16
			var wg sync.WaitGroup
			ids := make([]string, n)
			errs := make([]error, n)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					res, err := svc.IngestReading(ctx, athlete, anomaly.Reading{
						ID: "burst-" + strconv.Itoa(i), HeartRate: 190 + i, OxygenSaturation: 97,
					})
					ids[i], errs[i] = res.EmergencyID, err
				}(i)
			}
			close(start)
			wg.Wait()

			Convey("Then they all share one emergency", func() {
				So(ids[0], ShouldNotBeEmpty)
				for i := 0; i < n; i++ {
					So(errs[i], ShouldBeNil)
					So(ids[i], ShouldEqual, ids[0])
				}
				So(svc.ActiveEmergencies(ctx), ShouldHaveLength, 1)
			})
		})

		Convey("When an athlete submits a reading for someone else", func() {
			_, err := svc.IngestReading(ctx, athlete, anomaly.Reading{ID: "r-4", AthleteID: coach.ID, HeartRate: 80})

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When a coach submits without an athlete", func() {
			_, err := svc.IngestReading(ctx, coach, anomaly.Reading{ID: "r-5", HeartRate: 80})

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When a reading is physically impossible", func() {
			_, err := svc.IngestReading(ctx, athlete, anomaly.Reading{ID: "r-6", HeartRate: 80, OxygenSaturation: 150})

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, anomaly.ErrInvalidReading), ShouldBeTrue)
			})
		})

		Convey("When the same reading id is seen twice", func() {
			first := svc.SeenAndRecord(ctx, "r-7")
			second := svc.SeenAndRecord(ctx, "r-7")
			svc.Unrecord(ctx, "r-7")

			Convey("Then only the second is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.SeenAndRecord(ctx, "r-7"), ShouldBeFalse)
			})
		})
	})
}

func TestNotifications(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := startService(t)
		athlete := register(t, svc, "athlete@example.com", model.RoleAthlete)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)

		Convey("When an athlete sends a protocol update", func() {
			_, err := svc.SendProtocolUpdate(ctx, athlete, types.ProtocolUpdateRequest{Title: "t", Message: "m"})

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When a notification has no target", func() {
			_, err := svc.CreateNotification(ctx, coach, types.NotificationRequest{Title: "t", Message: "m"})

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the coach generates monthly reminders", func() {
			created, err := svc.GenerateMonthlyReminders(ctx, coach)
			So(err, ShouldBeNil)

			Convey("Then the athlete sees the device check", func() {
				So(created, ShouldHaveLength, 2)
				ns, err := svc.Notifications(ctx, athlete, true, 0)
				So(err, ShouldBeNil)
				So(ns, ShouldHaveLength, 1)
				So(ns[0].Type, ShouldEqual, model.NotificationReminder)
			})

			Convey("And the athlete switches reminders off", func() {
				prefs := model.DefaultPreferences()
				prefs.TrainingReminders = false
				_, err := svc.UpdateNotificationPreferences(ctx, athlete, prefs)
				So(err, ShouldBeNil)

				Convey("Then reminders are hidden", func() {
					ns, err := svc.Notifications(ctx, athlete, false, 0)
					So(err, ShouldBeNil)
					So(ns, ShouldBeEmpty)
				})
			})

			Convey("And the athlete marks everything read", func() {
				n, err := svc.MarkAllNotificationsRead(ctx, athlete)
				So(err, ShouldBeNil)

				Convey("Then nothing is unread", func() {
					So(n, ShouldEqual, 1)
					ns, err := svc.Notifications(ctx, athlete, true, 0)
					So(err, ShouldBeNil)
					So(ns, ShouldBeEmpty)
				})
			})
		})
	})
}

func TestDashboards(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := startService(t)
		athlete := register(t, svc, "athlete@example.com", model.RoleAthlete)
		coach := register(t, svc, "coach@example.com", model.RoleCoach)
		referee := register(t, svc, "ref@example.com", model.RoleReferee)

		Convey("When an athlete with a contact opens their dashboard", func() {
			_, err := svc.CreateContact(ctx, athlete, types.ContactRequest{Name: "Mum", Relationship: "parent", Phone: "+15550100"})
			So(err, ShouldBeNil)
			dash, err := svc.AthleteDashboard(ctx, athlete)

			Convey("Then it carries the contact", func() {
				So(err, ShouldBeNil)
				So(dash.Athlete.ID, ShouldEqual, athlete.ID)
				So(dash.Contacts, ShouldHaveLength, 1)
			})

			Convey("Then the coach cannot read it", func() {
				contacts, err := svc.Contacts(ctx, coach)
				So(err, ShouldBeNil)
				So(contacts, ShouldBeEmpty)
			})
		})

		Convey("When the coach opens the coach dashboard", func() {
			dash, err := svc.CoachDashboard(ctx, coach)

			Convey("Then the team is listed", func() {
				So(err, ShouldBeNil)
				So(dash.Athletes, ShouldNotBeEmpty)
				So(dash.Overview.TotalAthletes, ShouldEqual, len(dash.Athletes))
			})
		})

		Convey("When a referee opens the teammate dashboard", func() {
			_, wrong := svc.ResponderDashboard(ctx, referee, model.RoleTeammate)
			own, err := svc.ResponderDashboard(ctx, referee, model.RoleReferee)

			Convey("Then only their own role's view is allowed", func() {
				So(errors.Is(wrong, policy.ErrForbidden), ShouldBeTrue)
				So(err, ShouldBeNil)
				So(own.Role, ShouldEqual, model.RoleReferee)
			})
		})

		Convey("When a coach asks for a coach responder dashboard", func() {
			_, err := svc.ResponderDashboard(ctx, coach, model.RoleCoach)

			Convey("Then it does not exist", func() {
				So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
			})
		})
	})
}
