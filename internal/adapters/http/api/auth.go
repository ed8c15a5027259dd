package api

import (
	"context"
	"mime"
	"net/http"

	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

// AuthDependencies defines the account operations.
type AuthDependencies interface {
	Register(ctx context.Context, req auth.RegisterRequest) (model.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (types.Session, error)
	Me(ctx context.Context, caller model.Actor) (model.User, error)
}

// AuthHandler handles registration and login.
type AuthHandler struct {
	deps AuthDependencies
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies) *AuthHandler {
	return &AuthHandler{deps: deps}
}

// HandleRegister handles POST /api/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.deps.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleLogin handles POST /api/auth/login. OAuth2 password-form clients send
// username and password as a form; everyone else sends JSON.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, ErrBadRequest)
			return
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := h.deps.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleMe handles GET /api/auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.deps.Me(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}
