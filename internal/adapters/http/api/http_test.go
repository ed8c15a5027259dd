package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/adapters/http/api"
	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeDeps implements the handful of operations these tests drive; anything
// else panics through the nil embedded interface.
type fakeDeps struct {
	api.Dependencies

	issuer *auth.Issuer

	mu        sync.Mutex
	pingErr   error
	seen      map[string]bool
	ingestErr error
	triggered []model.Actor
	logins    []auth.LoginRequest
	dashRole  model.Role
}

func newFake() *fakeDeps {
	return &fakeDeps{issuer: auth.NewIssuer(testSecret, time.Minute), seen: map[string]bool{}}
}

func (f *fakeDeps) Parse(raw string) (auth.Claims, error) { return f.issuer.Parse(raw) }

func (f *fakeDeps) Ping(context.Context) error { return f.pingErr }

func (f *fakeDeps) Stats() types.Stats {
	return types.Stats{Started: true, Connections: map[model.Role]int{model.RoleCoach: 1}, Workers: 4}
}

func (f *fakeDeps) Register(_ context.Context, req auth.RegisterRequest) (model.User, error) {
	if err := auth.Validate(req); err != nil {
		return model.User{}, err
	}
	if req.Email == "taken@example.com" {
		return model.User{}, repository.ErrEmailTaken
	}
	return model.User{ID: "u-new", Email: req.Email, Role: model.Role(req.Role), PasswordHash: "hidden"}, nil
}

func (f *fakeDeps) Login(_ context.Context, req auth.LoginRequest) (types.Session, error) {
	f.mu.Lock()
	f.logins = append(f.logins, req)
	f.mu.Unlock()
	if req.Password != "correct horse" {
		return types.Session{}, auth.ErrInvalidCredentials
	}
	return types.Session{AccessToken: "tok", TokenType: types.TokenType}, nil
}

func (f *fakeDeps) TriggerEmergency(_ context.Context, caller model.Actor, req types.TriggerRequest) (model.EmergencyRecord, error) {
	f.mu.Lock()
	f.triggered = append(f.triggered, caller)
	f.mu.Unlock()
	return model.EmergencyRecord{ID: "e-1", SubjectID: caller.ID, Status: model.StatusActive}, nil
}

func (f *fakeDeps) ActiveEmergencies(context.Context) []model.EmergencyRecord {
	return []model.EmergencyRecord{{ID: "e-1", SubjectID: "a-1", Status: model.StatusActive}}
}

func (f *fakeDeps) Emergency(_ context.Context, id string) (model.EmergencyRecord, error) {
	if id != "e-1" {
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return model.EmergencyRecord{ID: "e-1"}, nil
}

func (f *fakeDeps) ResolveEmergency(_ context.Context, caller model.Actor, id string) (model.EmergencyRecord, error) {
	if err := policy.RequireActor(caller, policy.EmergencyResolvers...); err != nil {
		return model.EmergencyRecord{}, err
	}
	return model.EmergencyRecord{ID: id, Status: model.StatusResolved}, nil
}

func (f *fakeDeps) SeenAndRecord(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeDeps) Unrecord(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
}

func (f *fakeDeps) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeDeps) IngestReading(_ context.Context, _ model.Actor, r anomaly.Reading) (types.IngestResult, error) {
	if f.ingestErr != nil {
		return types.IngestResult{}, f.ingestErr
	}
	res := types.IngestResult{ReadingID: r.ID}
	if r.HeartRate > 170 {
		res.Assessment = anomaly.Assessment{Anomalous: true, Severity: anomaly.SeverityCritical}
		res.EmergencyID = "e-2"
	}
	return res, nil
}

func (f *fakeDeps) ResponderDashboard(_ context.Context, caller model.Actor, role model.Role) (types.ResponderDashboard, error) {
	f.mu.Lock()
	f.dashRole = role
	f.mu.Unlock()
	if err := policy.RequireActor(caller, role); err != nil {
		return types.ResponderDashboard{}, err
	}
	return types.ResponderDashboard{Role: role}, nil
}

func (f *fakeDeps) token(t *testing.T, id string, role model.Role) string {
	t.Helper()
	tok, err := f.issuer.Issue(model.User{ID: id, Email: id + "@example.com", Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func newTestServer(t *testing.T, deps *fakeDeps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.NewServer(deps, api.WithLogger(logger.Nop())).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, target, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func errorCode(raw []byte) int {
	var body struct {
		Code int `json:"code"`
	}
	_ = json.Unmarshal(raw, &body)
	return body.Code
}

func TestOps(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFake()
		srv := newTestServer(t, deps)

		Convey("When the database is reachable", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/healthz", "", "")

			Convey("Then /healthz reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When the database is down", func() {
			deps.pingErr = errors.New("connection refused")
			resp, raw := do(t, http.MethodGet, srv.URL+"/healthz", "", "")

			Convey("Then /healthz reports degraded", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				So(string(raw), ShouldContainSubstring, "degraded")
			})
		})

		Convey("When /stats is requested", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/stats", "", "")

			Convey("Then the snapshot is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `"connections":{"coach":1}`)
			})
		})

		Convey("When /metrics is scraped after some traffic", func() {
			do(t, http.MethodGet, srv.URL+"/stats", "", "")
			resp, raw := do(t, http.MethodGet, srv.URL+"/metrics", "", "")

			Convey("Then requests are labelled by route pattern", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `endpoint="/stats"`)
			})
		})

		Convey("When the API docs are requested", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/api-docs", "", "")

			Convey("Then the ReDoc page is served without authentication", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, "/openapi.yaml")
			})
		})

		Convey("When a browser sends a CORS preflight", func() {
			req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/emergency-alerts/active-emergencies", nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then it is answered without authentication", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example.com")
				So(resp.Header.Get("Access-Control-Allow-Credentials"), ShouldEqual, "true")
			})
		})
	})
}

func TestAuthRoutes(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFake()
		srv := newTestServer(t, deps)

		Convey("When registering with a short password", func() {
			resp, raw := do(t, http.MethodPost, srv.URL+"/api/auth/register", "",
				`{"email":"a@example.com","password":"short","full_name":"A","role":"athlete"}`)

			Convey("Then the request is rejected with 400", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(errorCode(raw), ShouldEqual, http.StatusBadRequest)
				So(string(raw), ShouldContainSubstring, "password")
			})
		})

		Convey("When registering a taken email", func() {
			resp, _ := do(t, http.MethodPost, srv.URL+"/api/auth/register", "",
				`{"email":"taken@example.com","password":"long enough","full_name":"A","role":"coach"}`)

			Convey("Then the conflict is reported", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When registering successfully", func() {
			resp, raw := do(t, http.MethodPost, srv.URL+"/api/auth/register", "",
				`{"email":"new@example.com","password":"long enough","full_name":"New","role":"coach"}`)

			Convey("Then the user is returned without its hash", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(string(raw), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When logging in with an OAuth2 password form", func() {
			form := url.Values{"username": {"coach@example.com"}, "password": {"correct horse"}}
			resp, err := http.PostForm(srv.URL+"/api/auth/login", form)
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then username is treated as the email", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.logins[0].Email, ShouldEqual, "coach@example.com")
			})
		})

		Convey("When logging in with a wrong password", func() {
			resp, raw := do(t, http.MethodPost, srv.URL+"/api/auth/login", "",
				`{"email":"coach@example.com","password":"nope"}`)

			Convey("Then 401 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
				So(errorCode(raw), ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestEmergencyRoutes(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFake()
		srv := newTestServer(t, deps)
		athlete := deps.token(t, "a-1", model.RoleAthlete)
		coach := deps.token(t, "c-1", model.RoleCoach)

		Convey("When no token is presented", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/api/emergency-alerts/active-emergencies", "", "")

			Convey("Then the request is unauthorized", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
				So(resp.Header.Get("WWW-Authenticate"), ShouldEqual, "Bearer")
				So(errorCode(raw), ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When a garbage token is presented", func() {
			resp, _ := do(t, http.MethodGet, srv.URL+"/api/emergency-alerts/active-emergencies", "not-a-jwt", "")

			Convey("Then the request is unauthorized", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When an athlete triggers an emergency without a body", func() {
			resp, raw := do(t, http.MethodPost, srv.URL+"/api/emergency-alerts/trigger-emergency", athlete, "")

			Convey("Then it is accepted on behalf of the token's identity", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
				So(string(raw), ShouldContainSubstring, `"athlete_id":"a-1"`)
				So(deps.triggered, ShouldResemble, []model.Actor{{ID: "a-1", Role: model.RoleAthlete}})
			})
		})

		Convey("When listing active emergencies", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/api/emergency-alerts/active-emergencies", coach, "")

			Convey("Then the records are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var recs []model.EmergencyRecord
				So(json.Unmarshal(raw, &recs), ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
			})
		})

		Convey("When fetching an unknown emergency", func() {
			resp, raw := do(t, http.MethodGet, srv.URL+"/api/emergency-alerts/nope", coach, "")

			Convey("Then 404 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				So(errorCode(raw), ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When an athlete tries to resolve", func() {
			resp, _ := do(t, http.MethodPost, srv.URL+"/api/emergency-alerts/resolve-emergency/e-1", athlete, "")

			Convey("Then 403 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When a coach resolves", func() {
			resp, raw := do(t, http.MethodPost, srv.URL+"/api/emergency-alerts/resolve-emergency/e-1", coach, "")

			Convey("Then the resolved record is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `"status":"resolved"`)
			})
		})

		Convey("When a teammate opens the referee dashboard", func() {
			teammate := deps.token(t, "t-1", model.RoleTeammate)
			resp, _ := do(t, http.MethodGet, srv.URL+"/api/dashboard/referee", teammate, "")

			Convey("Then 403 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
				So(deps.dashRole, ShouldEqual, model.RoleReferee)
			})
		})
	})
}

func TestVitalsRoute(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFake()
		srv := newTestServer(t, deps)
		athlete := deps.token(t, "a-1", model.RoleAthlete)
		target := srv.URL + "/api/vitals"

		Convey("When a reading has no id", func() {
			resp, _ := do(t, http.MethodPost, target, athlete, `{"heart_rate":80}`)

			Convey("Then it is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a normal reading is posted twice", func() {
			body := `{"reading_id":"r-1","heart_rate":80,"oxygen_saturation":98}`
			first, _ := do(t, http.MethodPost, target, athlete, body)
			second, raw := do(t, http.MethodPost, target, athlete, body)

			Convey("Then the second is reported as a duplicate", func() {
				So(first.StatusCode, ShouldEqual, http.StatusOK)
				So(second.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When an anomalous reading raises an emergency", func() {
			resp, raw := do(t, http.MethodPost, target, athlete, `{"reading_id":"r-2","heart_rate":190}`)

			Convey("Then 202 is returned with the emergency id", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
				So(string(raw), ShouldContainSubstring, `"emergency_id":"e-2"`)
			})
		})

		Convey("When ingest fails", func() {
			deps.ingestErr = fmt.Errorf("%w: out of range", auth.ErrValidation)
			resp, _ := do(t, http.MethodPost, target, athlete, `{"reading_id":"r-3","heart_rate":80}`)

			Convey("Then the id is forgotten so the device can retry", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(deps.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestCORS(t *testing.T) {
	Convey("Given CORS limited to one origin", t, func() {
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
		h := api.CORS([]string{"https://app.example.com"})(next)

		preflight := func(origin string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodOptions, "/api/notifications/", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Authorization")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		Convey("Then the listed origin is allowed with its headers", func() {
			rec := preflight("https://app.example.com")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example.com")
			So(rec.Header().Get("Access-Control-Allow-Headers"), ShouldEqual, "Authorization")
			So(rec.Header().Get("Access-Control-Max-Age"), ShouldEqual, "600")
		})

		Convey("Then another origin gets no allow headers", func() {
			rec := preflight("https://evil.example.com")
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})

		Convey("Then plain requests pass through", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("Origin", "https://app.example.com")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusTeapot)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example.com")
		})
	})
}
