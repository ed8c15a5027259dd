package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

const defaultNotificationLimit = 50

// NotificationDependencies defines in-app notification operations.
type NotificationDependencies interface {
	CreateNotification(ctx context.Context, caller model.Actor, req types.NotificationRequest) (model.Notification, error)
	Notifications(ctx context.Context, caller model.Actor, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, caller model.Actor, id string) error
	MarkAllNotificationsRead(ctx context.Context, caller model.Actor) (int, error)
	NotificationPreferences(ctx context.Context, caller model.Actor) (model.Preferences, error)
	UpdateNotificationPreferences(ctx context.Context, caller model.Actor, p model.Preferences) (model.Preferences, error)
	GenerateMonthlyReminders(ctx context.Context, caller model.Actor) ([]model.Notification, error)
	SendProtocolUpdate(ctx context.Context, caller model.Actor, req types.ProtocolUpdateRequest) (model.Notification, error)
	RegisterDevice(ctx context.Context, caller model.Actor, req types.DeviceRequest) (model.Device, error)
}

// NotificationHandler handles /api/notifications.
type NotificationHandler struct {
	deps NotificationDependencies
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(deps NotificationDependencies) *NotificationHandler {
	return &NotificationHandler{deps: deps}
}

type markedResponse struct {
	Marked int `json:"marked"`
}

// HandleList lists the caller's notifications. ?unread_only=true filters.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := limitParam(r, defaultNotificationLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	unread := r.URL.Query().Get("unread_only") == "true"
	out, err := h.deps.Notifications(r.Context(), actor, unread, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate creates a notification.
func (h *NotificationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.NotificationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.deps.CreateNotification(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// HandleMarkRead marks one notification read.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.MarkNotificationRead(r.Context(), actor, chi.URLParam(r, "notification_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "read"})
}

// HandleMarkAllRead marks every notification read.
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.deps.MarkAllNotificationsRead(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markedResponse{Marked: n})
}

// HandleGetPreferences returns the caller's preferences.
func (h *NotificationHandler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.deps.NotificationPreferences(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutPreferences replaces the caller's preferences.
func (h *NotificationHandler) HandlePutPreferences(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var p model.Preferences
	if err := decode(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.deps.UpdateNotificationPreferences(r.Context(), actor, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleMonthlyReminders generates this month's reminders.
func (h *NotificationHandler) HandleMonthlyReminders(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.GenerateMonthlyReminders(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleProtocolUpdate broadcasts a protocol change.
func (h *NotificationHandler) HandleProtocolUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.ProtocolUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.deps.SendProtocolUpdate(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// HandleRegisterDevice stores a push token.
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.DeviceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deps.RegisterDevice(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
