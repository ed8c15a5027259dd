package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// SimulationDependencies defines drill operations.
type SimulationDependencies interface {
	StartSimulation(ctx context.Context, caller model.Actor, req types.SimulationRequest) (model.EmergencyRecord, error)
	EndSimulation(ctx context.Context, caller model.Actor, id string) (types.SimulationEnded, error)
	ActiveSimulations(ctx context.Context, caller model.Actor) ([]model.EmergencyRecord, error)
	Simulation(ctx context.Context, caller model.Actor, id string) (model.EmergencyRecord, error)
}

// SimulationHandler handles /api/emergency-simulations.
type SimulationHandler struct {
	deps SimulationDependencies
}

// NewSimulationHandler creates a new simulation handler.
func NewSimulationHandler(deps SimulationDependencies) *SimulationHandler {
	return &SimulationHandler{deps: deps}
}

// HandleStart starts a drill.
func (h *SimulationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.SimulationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.StartSimulation(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// HandleEnd stops a drill.
func (h *SimulationHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ended, err := h.deps.EndSimulation(r.Context(), actor, chi.URLParam(r, "simulation_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ended)
}

// HandleActive lists the caller's running drills.
func (h *SimulationHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := h.deps.ActiveSimulations(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleGet returns one of the caller's drills.
func (h *SimulationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.Simulation(r.Context(), actor, chi.URLParam(r, "simulation_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
