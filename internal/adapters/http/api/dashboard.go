package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/mockdata"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// DashboardDependencies defines the role dashboards.
type DashboardDependencies interface {
	AthleteDashboard(ctx context.Context, caller model.Actor) (types.AthleteDashboard, error)
	CoachDashboard(ctx context.Context, caller model.Actor) (types.CoachDashboard, error)
	CoachAthlete(ctx context.Context, caller model.Actor, athleteID string) (mockdata.AthleteDetail, error)
	ResponderDashboard(ctx context.Context, caller model.Actor, role model.Role) (types.ResponderDashboard, error)
}

// DashboardHandler handles /api/dashboard.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleAthlete serves the athlete dashboard.
func (h *DashboardHandler) HandleAthlete(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.deps.AthleteDashboard)
}

// HandleCoach serves the coach dashboard.
func (h *DashboardHandler) HandleCoach(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.deps.CoachDashboard)
}

// HandleCoachAthlete serves one athlete's detail to a coach.
func (h *DashboardHandler) HandleCoachAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "athlete_id")
	serve(w, r, func(ctx context.Context, a model.Actor) (mockdata.AthleteDetail, error) {
		return h.deps.CoachAthlete(ctx, a, id)
	})
}

// HandleResponder serves the dashboard of role.
func (h *DashboardHandler) HandleResponder(role model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serve(w, r, func(ctx context.Context, a model.Actor) (types.ResponderDashboard, error) {
			return h.deps.ResponderDashboard(ctx, a, role)
		})
	}
}

func serve[T any](w http.ResponseWriter, r *http.Request, load func(context.Context, model.Actor) (T, error)) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := load(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
