package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
)

type directory struct {
	users   []model.User
	prefs   map[string]model.Preferences
	tokens  map[string][]string
	created []model.Notification
	err     error
}

func (d *directory) UsersByRoles(context.Context, ...model.Role) ([]model.User, error) {
	return d.users, d.err
}

func (d *directory) DeviceTokens(_ context.Context, ids ...string) ([]string, error) {
	var out []string
	for _, id := range ids {
		out = append(out, d.tokens[id]...)
	}
	return out, nil
}

func (d *directory) Preferences(_ context.Context, id string) (model.Preferences, error) {
	if p, ok := d.prefs[id]; ok {
		return p, nil
	}
	return model.DefaultPreferences(), nil
}

func (d *directory) CreateNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	d.created = append(d.created, n)
	return n, nil
}

type mailer struct {
	mu      sync.Mutex
	to      []string
	subject string
	err     error
}

func (m *mailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to, m.subject = to, subject
	return m.err
}

func emergency() model.EmergencyRecord {
	return model.EmergencyRecord{
		ID:          "em-1",
		Kind:        model.KindCardiacAnomaly,
		SubjectID:   "ath-1",
		SubjectName: "Sam Doe",
		Location:    model.Location{Description: "Field 2"},
		Vitals:      &model.VitalSigns{HeartRate: 180, AnomalyType: "Ventricular Fibrillation"},
		Status:      model.StatusActive,
	}
}

func TestNotifier(t *testing.T) {
	Convey("Given a coach and a referee, one of whom muted email", t, func() {
		ctx := context.Background()
		dir := &directory{
			users: []model.User{
				{ID: "c-1", Email: "coach@x.io", Role: model.RoleCoach},
				{ID: "r-1", Email: "ref@x.io", Role: model.RoleReferee},
			},
			prefs: map[string]model.Preferences{
				"r-1": {EmergencyAlerts: true, Email: false, Push: true},
			},
			tokens: map[string][]string{"c-1": {"tok-c"}, "r-1": {"tok-r"}},
		}
		var (
			pushed  pushRequest
			authKey string
		)
		gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&pushed)
			authKey = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"success":2,"failure":0}`))
		}))
		defer gw.Close()

		m := &mailer{}
		n := New(dir, WithMailer(m), WithPusher(NewPushGateway(gw.URL, "secret", gw.Client())), WithLogger(logger.Nop()))

		Convey("When an emergency is raised", func() {
			err := n.EmergencyRaised(ctx, emergency())

			Convey("Then every channel is used according to preferences", func() {
				So(err, ShouldBeNil)
				So(m.to, ShouldResemble, []string{"coach@x.io"})
				So(m.subject, ShouldEqual, "Emergency: Sam Doe")
				So(pushed.RegistrationIDs, ShouldResemble, []string{"tok-c", "tok-r"})
				So(authKey, ShouldEqual, "key=secret")
				So(pushed.Data["emergency_id"], ShouldEqual, "em-1")
				So(dir.created, ShouldHaveLength, 1)
				So(dir.created[0].Type, ShouldEqual, model.NotificationEmergency)
			})
		})

		Convey("When the mailer fails", func() {
			m.err = errors.New("relay down")
			err := n.EmergencyRaised(ctx, emergency())

			Convey("Then the other channels still run and the failure is reported", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "email")
				So(pushed.RegistrationIDs, ShouldHaveLength, 2)
			})
		})

		Convey("When recipients cannot be resolved", func() {
			dir.err = errors.New("db gone")
			So(n.EmergencyRaised(ctx, emergency()), ShouldNotBeNil)
			So(dir.created, ShouldBeEmpty)
		})
	})
}

func TestPushGatewayErrors(t *testing.T) {
	Convey("Given a gateway that rejects requests", t, func() {
		gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer gw.Close()

		_, err := NewPushGateway(gw.URL, "k", gw.Client()).Send(context.Background(), []string{"t"}, "a", "b", nil)
		So(errors.Is(err, ErrSend), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "401")
	})

	Convey("Given no tokens", t, func() {
		res, err := NewPushGateway("http://unused.invalid", "", nil).Send(context.Background(), nil, "a", "b", nil)
		So(err, ShouldBeNil)
		So(res, ShouldResemble, PushResult{})
	})
}

func TestCompose(t *testing.T) {
	Convey("Given emergencies to describe", t, func() {
		title, body := Compose(emergency())
		So(title, ShouldEqual, "Emergency: Sam Doe")
		So(body, ShouldEqual, "Athlete Sam Doe needs immediate assistance at Field 2 (Ventricular Fibrillation, heart rate 180).")

		sim := emergency()
		sim.Kind = model.KindSimulation
		sim.SubjectName = ""
		title, _ = Compose(sim)
		So(title, ShouldEqual, "[SIMULATION] Emergency: ath-1")
	})

	Convey("Given a message to send over SMTP", t, func() {
		raw := string(compose("alerts@x.io", []string{"a@x.io", "b@x.io"}, "Hi\r\nBcc: evil@x.io", "<p>body</p>"))
		So(raw, ShouldContainSubstring, "To: a@x.io, b@x.io\r\n")
		So(raw, ShouldContainSubstring, "Subject: HiBcc: evil@x.io\r\n")
		So(strings.HasSuffix(raw, "\r\n\r\n<p>body</p>"), ShouldBeTrue)
	})
}
