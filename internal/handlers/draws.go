package handlers

import (
	"net/http"

	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// handleListOpenDraws returns the draws currently selling numbers
func (h *Handlers) handleListOpenDraws(w http.ResponseWriter, r *http.Request) {
	draws, err := h.Catalog.ListOpenDraws(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, DrawsResponse{Draws: draws})
}

// handleListDraws returns the caller's own draws
func (h *Handlers) handleListDraws(w http.ResponseWriter, r *http.Request) {
	draws, err := h.Catalog.ListDraws(r.Context(), actor(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, DrawsResponse{Draws: draws})
}

// handleCreateDraw creates a draw owned by the caller
func (h *Handlers) handleCreateDraw(w http.ResponseWriter, r *http.Request) {
	var req DrawCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	change, err := h.Catalog.CreateDraw(r.Context(), actor(r), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, change)
}

// handleGetDraw returns one draw
func (h *Handlers) handleGetDraw(w http.ResponseWriter, r *http.Request) {
	draw, err := h.Catalog.GetDraw(r.Context(), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, draw)
}

// handleSetDrawStatus advances or cancels a draw
func (h *Handlers) handleSetDrawStatus(w http.ResponseWriter, r *http.Request) {
	var req DrawStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	change, err := h.Catalog.AdvanceStatus(r.Context(), actor(r), idParam(r), models.DrawStatus(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, change)
}

// handleUnavailable returns the numbers held by live participations
func (h *Handlers) handleUnavailable(w http.ResponseWriter, r *http.Request) {
	drawID := idParam(r)
	nums, err := h.Inventory.ComputeUnavailable(r.Context(), drawID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if nums == nil {
		nums = []int{}
	}
	respondOK(w, NumbersResponse{DrawID: drawID, Numbers: nums})
}

// handleAvailable returns the numbers still open for claims
func (h *Handlers) handleAvailable(w http.ResponseWriter, r *http.Request) {
	drawID := idParam(r)
	nums, err := h.Inventory.AvailableNumbers(r.Context(), drawID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if nums == nil {
		nums = []int{}
	}
	respondOK(w, NumbersResponse{DrawID: drawID, Numbers: nums})
}

// handleDrawStats returns the ledger summary of a draw
func (h *Handlers) handleDrawStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Catalog.Stats(r.Context(), actor(r), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, stats)
}

// handleClaim claims numbers for the caller
func (h *Handlers) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	receipt, err := h.Inventory.TryClaim(r.Context(), actor(r), idParam(r), services.ClaimRequest{
		Numbers:        req.Numbers,
		PurchaserName:  req.PurchaserName,
		PurchaserPhone: req.PurchaserPhone,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, receipt)
}

// handleListDrawParticipations returns the ledger of a draw
func (h *Handlers) handleListDrawParticipations(w http.ResponseWriter, r *http.Request) {
	parts, err := h.Ledger.ListByDraw(r.Context(), actor(r), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, ParticipationsResponse{Participations: parts})
}

// handleResolve records the winning numbers of a draw
func (h *Handlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.Results.Resolve(r.Context(), actor(r), idParam(r), services.ResolveRequest{
		WinningNumbers: req.WinningNumbers,
		Winners:        req.Winners,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, res)
}

// handleGetResult returns the stored result of a resolved draw
func (h *Handlers) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.Results.GetResult(r.Context(), idParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, res)
}
