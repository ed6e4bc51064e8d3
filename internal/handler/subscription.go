package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/internal/service"
)

// SubscriptionHandler serves the subscription endpoints of the signed-in account.
type SubscriptionHandler struct {
	subs *service.SubscriptionService
}

func NewSubscriptionHandler(subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// List handles GET /api/subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	subs, err := h.subs.List(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, subs)
}

// Get handles GET /api/subscriptions/{id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	sub, err := h.subs.Get(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Create handles POST /api/subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	var req domain.SubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.subs.Create(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}

// Update handles PUT /api/subscriptions/{id}.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	var req domain.SubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.subs.Update(r.Context(), id, chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /api/subscriptions/{id}.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	if err := h.subs.Delete(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkPaid handles POST /api/subscriptions/{id}/paid.
func (h *SubscriptionHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		Error(w, err)
		return
	}
	if err := h.subs.MarkPaid(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
