package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/gorilla/mux"
)

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.payments.Plans(r.Context()))
}

func (h *Handler) PurchaseSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	var req struct {
		PlanID      string `json:"planId"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, push, err := h.payments.PurchaseSubscription(r.Context(), id, req.PlanID, req.PhoneNumber)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"transaction": tx,
		"gateway":     push,
	})
}

func (h *Handler) PurchaseFeaturedListing(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Days        int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, push, err := h.payments.PurchaseFeaturedListing(r.Context(), id, mux.Vars(r)["id"], req.PhoneNumber, req.Days)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"transaction": tx,
		"gateway":     push,
	})
}

// PaymentCallback receives the asynchronous gateway result. The gateway
// only retries non-200 responses, so settlement errors other than an
// unknown transaction still acknowledge.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var envelope models.STKCallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.payments.HandleCallback(r.Context(), envelope.Body.STKCallback); err != nil {
		slog.Error("payment callback settlement failed", "checkout_request_id", envelope.Body.STKCallback.CheckoutRequestID, "error", err)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}

func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckoutRequestID string `json:"checkoutRequestId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := h.payments.QueryStatus(r.Context(), req.CheckoutRequestID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	tx, err := h.payments.GetTransaction(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}
	history, err := h.payments.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}
