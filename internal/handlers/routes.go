package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/metrics"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// limitClaims applies the claim rate limiter when one is configured
func (h *Handlers) limitClaims(next http.Handler) http.Handler {
	if h.ClaimLimiter == nil {
		return next
	}
	return h.ClaimLimiter(next)
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger) // Custom conditional HTTP logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(metrics.InstrumentHandler)
	r.Use(h.Auth.Identify)

	// Ops
	r.Get("/healthz", h.handleHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	// Live inventory feed (long-lived, outside the request timeout)
	if h.Feed != nil {
		r.Get("/ws", h.Feed)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Session (public)
		r.Post("/api/login", h.handleLogin)
		r.Post("/api/logout", h.handleLogout)

		// Public draw views
		r.Get("/api/draws/open", h.handleListOpenDraws)
		r.Get("/api/draws/{id}", h.handleGetDraw)
		r.Get("/api/draws/{id}/unavailable", h.handleUnavailable)
		r.Get("/api/draws/{id}/available", h.handleAvailable)
		r.Get("/api/draws/{id}/result", h.handleGetResult)

		// Identified callers; services check capabilities
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireActorAPI)

			r.Get("/api/me", h.handleMe)

			// Draws
			r.Get("/api/draws", h.handleListDraws)
			r.Post("/api/draws", h.handleCreateDraw)
			r.Put("/api/draws/{id}/status", h.handleSetDrawStatus)
			r.Get("/api/draws/{id}/stats", h.handleDrawStats)
			r.With(h.limitClaims).Post("/api/draws/{id}/claims", h.handleClaim)
			r.Get("/api/draws/{id}/participations", h.handleListDrawParticipations)
			r.Post("/api/draws/{id}/resolve", h.handleResolve)

			// Participations
			r.Get("/api/participations/mine", h.handleMyParticipations)
			r.Get("/api/participations/{id}", h.handleGetParticipation)
			r.Put("/api/participations/{id}/payment-status", h.handleSetPaymentStatus)
			r.Delete("/api/participations/{id}", h.handleDeleteParticipation)
			r.Post("/api/participations/{id}/verify", h.handleVerifyPayment)
			r.Get("/api/participations/{id}/qr", h.handleParticipationQR)

			// Audit
			r.Get("/api/audit", h.handleListAudit)
		})
	})

	return r
}
