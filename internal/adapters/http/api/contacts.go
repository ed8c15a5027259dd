package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// ContactDependencies defines emergency contact operations, scoped to the caller.
type ContactDependencies interface {
	CreateContact(ctx context.Context, caller model.Actor, req types.ContactRequest) (model.Contact, error)
	Contacts(ctx context.Context, caller model.Actor) ([]model.Contact, error)
	Contact(ctx context.Context, caller model.Actor, id string) (model.Contact, error)
	UpdateContact(ctx context.Context, caller model.Actor, id string, req types.ContactRequest) (model.Contact, error)
	DeleteContact(ctx context.Context, caller model.Actor, id string) error
}

// ContactHandler handles /api/emergency-contacts.
type ContactHandler struct {
	deps ContactDependencies
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(deps ContactDependencies) *ContactHandler {
	return &ContactHandler{deps: deps}
}

// HandleList lists the caller's contacts.
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.deps.Contacts)
}

// HandleGet returns one contact.
func (h *ContactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contact_id")
	serve(w, r, func(ctx context.Context, a model.Actor) (model.Contact, error) {
		return h.deps.Contact(ctx, a, id)
	})
}

// HandleCreate adds a contact.
func (h *ContactHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.ContactRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.deps.CreateContact(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleUpdate replaces a contact.
func (h *ContactHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.ContactRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.deps.UpdateContact(r.Context(), actor, chi.URLParam(r, "contact_id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a contact.
func (h *ContactHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.DeleteContact(r.Context(), actor, chi.URLParam(r, "contact_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
