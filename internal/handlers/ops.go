package handlers

import (
	"net/http"

	"github.com/abrezinsky/rafflebook/internal/models"
)

// handleHealth reports liveness
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, HealthResponse{Status: "ok"})
}

// handleListAudit returns audit events filtered by target, action and limit
func (h *Handlers) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	events, err := h.Audit.List(r.Context(), actor(r), models.AuditFilter{
		TargetRef:  q.Get("target"),
		ActionType: models.AuditAction(q.Get("action")),
		Limit:      limit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, AuditResponse{Events: events})
}
