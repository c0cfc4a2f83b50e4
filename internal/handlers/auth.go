package handlers

import (
	"net/http"

	"github.com/abrezinsky/rafflebook/internal/auth"
)

// handleLogin exchanges the owner password for a session cookie
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.respondError(w, r, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	a, _ := h.Auth.ValidateSession(token)
	respondOK(w, ActorResponse{ID: a.ID, Role: a.Role})
}

// handleLogout clears the session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}

	auth.ClearSessionCookie(w)
	respondSuccess(w, "Logged out")
}

// handleMe returns the identified caller
func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	respondOK(w, ActorResponse{ID: a.ID, Role: a.Role})
}
