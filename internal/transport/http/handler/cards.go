package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cardvault-api/internal/application/card"
	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// CardHandler handles authenticated card CRUD endpoints. Every operation is
// scoped to the user id in the bearer token claims.
type CardHandler struct {
	svc card.Service
}

func NewCardHandler(svc card.Service) *CardHandler { return &CardHandler{svc: svc} }

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.svc.Create(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CardEnvelope{
		Success: true,
		Message: "Credit card added successfully",
		Card:    view,
	})
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	views, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "Cards retrieved successfully"
	if len(views) == 0 {
		msg = "No cards found"
		views = []domain.CardView{}
	}
	writeJSON(w, http.StatusOK, CardListEnvelope{
		Success: true,
		Message: msg,
		Count:   len(views),
		Cards:   views,
	})
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "lastFourDigits"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CardEnvelope{
		Success: true,
		Message: "Card retrieved successfully",
		Card:    view,
	})
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.svc.Update(r.Context(), claims.UserID, chi.URLParam(r, "lastFourDigits"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CardEnvelope{
		Success: true,
		Message: "Card updated successfully",
		Card:    view,
	})
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.svc.Delete(r.Context(), claims.UserID, chi.URLParam(r, "lastFourDigits"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CardEnvelope{
		Success: true,
		Message: "Card deleted successfully",
		Card:    view,
	})
}
