package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/inbound"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Settings tune every connection.
type Settings struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

// DefaultSettings returns conservative defaults.
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout:   5 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   30 * time.Second,
		ReadLimit:      64 << 10,
		AllowedOrigins: []string{"*"},
	}
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(raw string) (auth.Claims, error)
}

// Server runs the read loop for one connection.
type Server interface {
	Serve(ctx context.Context, actor model.Actor, c inbound.Conn) error
}

// Handler authenticates, upgrades and hands connections to the router.
type Handler struct {
	tokens   TokenParser
	server   Server
	settings Settings
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewHandler builds the upgrade handler.
func NewHandler(tokens TokenParser, server Server, settings Settings, opts ...Option) *Handler {
	h := &Handler{
		tokens:   tokens,
		server:   server,
		settings: settings,
		upgrader: newUpgrader(settings.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	return h
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowAll := len(origins) == 0 || lo.Contains(origins, "*")
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || lo.Contains(origins, origin)
		},
	}
}

// ServeHTTP accepts a connection. The token may come from the Authorization
// header or the token query parameter. When the route carries user_id and
// role, they must match the token.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, status := h.authenticate(r)
	if status != http.StatusOK {
		metrics.RecordHTTPError("ws", r.Method, strconv.Itoa(status))
		http.Error(w, http.StatusText(status), status)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn(r.Context(), "upgrade failed", logger.String("user_id", actor.ID), logger.Error(err))
		return
	}
	conn := newConn(ws, h.settings)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go conn.keepalive(ctx)

	if err := h.server.Serve(ctx, actor, conn); err != nil && !errors.Is(err, ErrClosed) {
		h.logger.Warn(ctx, "connection ended with error", logger.String("user_id", actor.ID), logger.Error(err))
	}
}

func (h *Handler) authenticate(r *http.Request) (model.Actor, int) {
	raw := auth.TokenFromRequest(r)
	if raw == "" {
		return model.Actor{}, http.StatusUnauthorized
	}
	claims, err := h.tokens.Parse(raw)
	if err != nil {
		h.logger.Debug(r.Context(), "rejected websocket token", logger.Error(err))
		return model.Actor{}, http.StatusUnauthorized
	}
	actor := claims.Actor()

	pathID, pathRole := chi.URLParam(r, "user_id"), chi.URLParam(r, "role")
	if pathID != "" && pathID != actor.ID {
		return model.Actor{}, http.StatusForbidden
	}
	if pathRole != "" {
		role, err := model.ParseRole(pathRole)
		if err != nil {
			return model.Actor{}, http.StatusBadRequest
		}
		if role != actor.Role {
			return model.Actor{}, http.StatusForbidden
		}
	}
	return actor, http.StatusOK
}
