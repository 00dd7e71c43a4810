package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dcutelaria/storefront/internal/checkout"
	"github.com/dcutelaria/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

// CheckoutHandler drives the checkout flow over HTTP. The session snapshot is
// the single source of truth for the client: state, pix payload and error
// message all travel in it.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

type startCheckoutRequest struct {
	CartSessionID string `json:"cartSessionId"`
}

// StartCheckout handles POST /api/checkout.
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
			return
		}
	}

	view := h.checkout.Start(req.CartSessionID)
	WriteJSON(w, http.StatusCreated, view, h.logger)
}

// GetCheckout handles GET /api/checkout/{checkoutId}.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Get(chi.URLParam(r, "checkoutId"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "Checkout session not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, view, h.logger)
}

// Submit handles POST /api/checkout/{checkoutId}/submit.
// - 200: charge created, session in pix (or error state with a retry action)
// - 400: empty cart or bad body
// - 404: unknown session
// - 409: session already past the form
// - 422: per-field validation errors, session stays in form
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutId")

	var req service.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	view, err := h.checkout.Submit(r.Context(), checkoutID, req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			WriteFieldErrors(w, verr.Fields, h.logger)
		case errors.Is(err, service.ErrSessionNotFound):
			WriteError(w, http.StatusNotFound, "Checkout session not found", h.logger)
		case errors.Is(err, service.ErrEmptyCart):
			WriteError(w, http.StatusBadRequest, "Cart is empty", h.logger)
		case errors.Is(err, checkout.ErrBadTransition):
			WriteError(w, http.StatusConflict, "Checkout was already submitted", h.logger)
		case errors.Is(err, service.ErrGatewayRejected):
			// the session carries the buyer-facing message and the retry path
			WriteJSON(w, http.StatusOK, view, h.logger)
		default:
			h.logger.Error("checkout submit failed", "checkout_id", checkoutID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, view, h.logger)
}

// Retry handles POST /api/checkout/{checkoutId}/retry.
func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.Retry(chi.URLParam(r, "checkoutId"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, "Checkout session not found", h.logger)
			return
		}
		WriteError(w, http.StatusConflict, "Checkout is not in a retryable state", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, view, h.logger)
}

// Complete handles POST /api/checkout/{checkoutId}/complete. Only valid once
// the session reached success; it clears the backing cart and drops the session.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutId")

	if err := h.checkout.Complete(r.Context(), checkoutID); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			WriteError(w, http.StatusNotFound, "Checkout session not found", h.logger)
		case errors.Is(err, service.ErrNotCompleted):
			WriteError(w, http.StatusConflict, "Checkout has not completed", h.logger)
		default:
			h.logger.Error("checkout complete failed", "checkout_id", checkoutID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"completed": true}, h.logger)
}

// Cancel handles DELETE /api/checkout/{checkoutId}: the poll stops and the
// session is discarded at whatever state it is in.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Cancel(chi.URLParam(r, "checkoutId")); err != nil {
		WriteError(w, http.StatusNotFound, "Checkout session not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": true}, h.logger)
}
