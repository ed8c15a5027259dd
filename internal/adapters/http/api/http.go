// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/stomp/internal/adapters/http/swagger"
	"github.com/okian/stomp/internal/adapters/ws"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AuthDependencies
	EmergencyDependencies
	SimulationDependencies
	VitalsDependencies
	NotificationDependencies
	ReportDependencies
	DashboardDependencies
	ContactDependencies
	StatsProvider
	HealthChecker

	ws.TokenParser
	ws.Server
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	authHandler         *AuthHandler
	emergencyHandler    *EmergencyHandler
	simulationHandler   *SimulationHandler
	vitalsHandler       *VitalsHandler
	notificationHandler *NotificationHandler
	reportHandler       *ReportHandler
	dashboardHandler    *DashboardHandler
	contactHandler      *ContactHandler
	wsHandler           *ws.Handler

	settings ws.Settings
	logger   logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, settings: ws.DefaultSettings()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.authHandler = NewAuthHandler(deps)
	s.emergencyHandler = NewEmergencyHandler(deps)
	s.simulationHandler = NewSimulationHandler(deps)
	s.vitalsHandler = NewVitalsHandler(deps)
	s.notificationHandler = NewNotificationHandler(deps)
	s.reportHandler = NewReportHandler(deps)
	s.dashboardHandler = NewDashboardHandler(deps)
	s.contactHandler = NewContactHandler(deps)
	s.wsHandler = ws.NewHandler(deps, deps, s.settings, ws.WithLogger(s.logger.Named("ws")))
	return s
}

// Handler returns the root router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(MetricsMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.settings.AllowedOrigins))
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/ws", s.wsHandler.ServeHTTP)
	swagger.Register(r)

	authn := Authenticate(s.deps)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.authHandler.HandleRegister)
		r.Post("/auth/login", s.authHandler.HandleLogin)
		r.With(authn).Get("/auth/me", s.authHandler.HandleMe)

		r.Route("/emergency-alerts", func(r chi.Router) {
			// Websockets authenticate themselves so browsers can pass ?token=.
			r.Get("/ws/{user_id}/{role}", s.wsHandler.ServeHTTP)
			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/trigger-emergency", s.emergencyHandler.HandleTrigger)
				r.Get("/active-emergencies", s.emergencyHandler.HandleActive)
				r.Post("/resolve-emergency/{emergency_id}", s.emergencyHandler.HandleResolve)
				r.Get("/{emergency_id}", s.emergencyHandler.HandleGet)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/emergency-simulations", func(r chi.Router) {
				r.Post("/start", s.simulationHandler.HandleStart)
				r.Post("/end/{simulation_id}", s.simulationHandler.HandleEnd)
				r.Get("/active", s.simulationHandler.HandleActive)
				r.Get("/{simulation_id}", s.simulationHandler.HandleGet)
			})
			r.Post("/vitals", s.vitalsHandler.HandlePostReading)
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.notificationHandler.HandleList)
				r.Post("/", s.notificationHandler.HandleCreate)
				r.Post("/{notification_id}/read", s.notificationHandler.HandleMarkRead)
				r.Post("/read-all", s.notificationHandler.HandleMarkAllRead)
				r.Get("/preferences", s.notificationHandler.HandleGetPreferences)
				r.Put("/preferences", s.notificationHandler.HandlePutPreferences)
				r.Post("/generate-monthly-reminders", s.notificationHandler.HandleMonthlyReminders)
				r.Post("/send-protocol-update", s.notificationHandler.HandleProtocolUpdate)
				r.Post("/devices", s.notificationHandler.HandleRegisterDevice)
			})
			r.Route("/incident-reports", func(r chi.Router) {
				r.Post("/generate", s.reportHandler.HandleGenerate)
				r.Get("/list", s.reportHandler.HandleList)
				r.Get("/{report_id}", s.reportHandler.HandleGet)
			})
			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/athlete", s.dashboardHandler.HandleAthlete)
				r.Get("/coach", s.dashboardHandler.HandleCoach)
				r.Get("/coach/athlete/{athlete_id}", s.dashboardHandler.HandleCoachAthlete)
				r.Get("/teammate", s.dashboardHandler.HandleResponder(model.RoleTeammate))
				r.Get("/referee", s.dashboardHandler.HandleResponder(model.RoleReferee))
			})
			r.Route("/emergency-contacts", func(r chi.Router) {
				r.Get("/", s.contactHandler.HandleList)
				r.Post("/", s.contactHandler.HandleCreate)
				r.Get("/{contact_id}", s.contactHandler.HandleGet)
				r.Put("/{contact_id}", s.contactHandler.HandleUpdate)
				r.Delete("/{contact_id}", s.contactHandler.HandleDelete)
			})
		})
	})
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with the status statusFor assigns to err.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// decode reads a JSON body into v. Unknown fields are tolerated.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// caller returns the authenticated actor of r.
func caller(r *http.Request) (model.Actor, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok || p.Actor.ID == "" {
		return model.Actor{}, policy.ErrUnauthorized
	}
	return p.Actor, nil
}

// limitParam parses ?limit=, falling back to def.
func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest)
	}
	return n, nil
}
