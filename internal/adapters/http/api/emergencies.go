package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// EmergencyDependencies defines the emergency query and command surface.
type EmergencyDependencies interface {
	TriggerEmergency(ctx context.Context, caller model.Actor, req types.TriggerRequest) (model.EmergencyRecord, error)
	ActiveEmergencies(ctx context.Context) []model.EmergencyRecord
	Emergency(ctx context.Context, id string) (model.EmergencyRecord, error)
	ResolveEmergency(ctx context.Context, caller model.Actor, id string) (model.EmergencyRecord, error)
}

// EmergencyHandler handles /api/emergency-alerts.
type EmergencyHandler struct {
	deps EmergencyDependencies
}

// NewEmergencyHandler creates a new emergency handler.
func NewEmergencyHandler(deps EmergencyDependencies) *EmergencyHandler {
	return &EmergencyHandler{deps: deps}
}

// HandleTrigger raises a manual emergency. The alert fan-out happens after
// the response, hence 202.
func (h *EmergencyHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.TriggerRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	rec, err := h.deps.TriggerEmergency(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// HandleActive lists active emergencies.
func (h *EmergencyHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.ActiveEmergencies(r.Context()))
}

// HandleGet returns one active emergency.
func (h *EmergencyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Emergency(r.Context(), chi.URLParam(r, "emergency_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleResolve resolves an emergency.
func (h *EmergencyHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.ResolveEmergency(r.Context(), actor, chi.URLParam(r, "emergency_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
