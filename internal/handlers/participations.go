package handlers

import (
	"net/http"

	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// handleMyParticipations returns the caller's purchases
func (h *Handlers) handleMyParticipations(w http.ResponseWriter, r *http.Request) {
	parts, err := h.Ledger.ListByPurchaser(r.Context(), actor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, ParticipationsResponse{Participations: parts})
}

// handleGetParticipation returns one participation
func (h *Handlers) handleGetParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ledger.Get(r.Context(), actor(r), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, p)
}

// handleSetPaymentStatus confirms or rejects a payment
func (h *Handlers) handleSetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req PaymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	change, err := h.Ledger.SetPaymentStatus(r.Context(), actor(r), idParam(r), models.PaymentStatus(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, change)
}

// handleDeleteParticipation removes a participation and frees its numbers
func (h *Handlers) handleDeleteParticipation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.Delete(r.Context(), actor(r), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, res)
}

// handleVerifyPayment runs the advisory receipt check
func (h *Handlers) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.Ledger.VerifyPaymentProof(r.Context(), actor(r), idParam(r), services.ProofRequest{
		ImageRef:  req.ImageRef,
		PayerName: req.PayerName,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, res)
}

// handleParticipationQR serves the participation's ticket QR code
func (h *Handlers) handleParticipationQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Ledger.ParticipationQR(r.Context(), actor(r), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}
