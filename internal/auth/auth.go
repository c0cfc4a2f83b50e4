package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/models"
)

const (
	CookieName    = "rafflebook_session"
	SessionExpiry = 24 * time.Hour

	// Headers set by a trusted identity gateway in front of the server
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	// OwnerID is the actor ID of a password-authenticated organizer
	OwnerID = "owner"
)

// Raffle-themed words for password generation
var raffleWords = []string{
	"ticket", "number", "prize", "lucky", "draw",
	"jackpot", "stub", "winner", "bingo", "clover",
	"golden", "seven", "token", "drum", "ballot",
	"fortune", "spin", "charm", "bonus",
}

type session struct {
	actor  models.Actor
	expiry time.Time
}

// Auth maps session tokens to actors
type Auth struct {
	password     string
	trustHeaders bool
	clock        clock.Clock
	sessions     map[string]session
	mu           sync.RWMutex
}

// New creates a new Auth instance with the given owner password.
// When trustHeaders is set, requests without a session may identify
// themselves with the X-Actor-ID and X-Actor-Role headers.
func New(password string, trustHeaders bool, clk clock.Clock) *Auth {
	return &Auth{
		password:     password,
		trustHeaders: trustHeaders,
		clock:        clk,
		sessions:     make(map[string]session),
	}
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		idx := randomInt(len(raffleWords))
		words[i] = raffleWords[idx]
	}
	return strings.Join(words, "-")
}

// Login validates the owner password and returns a session token if valid
func (a *Auth) Login(password string) (string, bool) {
	if a.password == "" || password != a.password {
		return "", false
	}
	return a.StartSession(models.Actor{ID: OwnerID, Role: models.RoleOwner}), true
}

// StartSession issues a session token for actor
func (a *Auth) StartSession(actor models.Actor) string {
	token := generateToken()
	a.mu.Lock()
	a.sessions[token] = session{actor: actor, expiry: a.clock.Now().Add(SessionExpiry)}
	a.mu.Unlock()
	return token
}

// Logout invalidates a session token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// ValidateSession returns the actor of a live session
func (a *Auth) ValidateSession(token string) (models.Actor, bool) {
	a.mu.RLock()
	s, exists := a.sessions[token]
	a.mu.RUnlock()

	if !exists {
		return models.Actor{}, false
	}

	if a.clock.Now().After(s.expiry) {
		a.mu.Lock()
		delete(a.sessions, token)
		a.mu.Unlock()
		return models.Actor{}, false
	}

	return s.actor, true
}

// ActorFromRequest resolves the caller from the session cookie, then from
// gateway headers when they are trusted. The zero Actor means anonymous.
func (a *Auth) ActorFromRequest(r *http.Request) models.Actor {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if actor, ok := a.ValidateSession(cookie.Value); ok {
			return actor
		}
	}
	if !a.trustHeaders {
		return models.Actor{}
	}
	id := strings.TrimSpace(r.Header.Get(HeaderActorID))
	role, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
	if id == "" || !ok {
		return models.Actor{}
	}
	return models.Actor{ID: id, Role: role}
}

type actorKey struct{}

// WithActor returns a context carrying actor
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by Identify, or the zero Actor
func ActorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorKey{}).(models.Actor)
	return actor
}

// Identify middleware stores the caller's actor in the request context.
// Anonymous requests pass through; services decide what they may do.
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := a.ActorFromRequest(r)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireActorAPI middleware for API endpoints (returns 401 for anonymous callers)
func RequireActorAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFromContext(r.Context()).ID != "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - please log in"}`))
	})
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// generateToken creates a random session token
func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	bytes := make([]byte, 1)
	rand.Read(bytes)
	return int(bytes[0]) % max
}
