package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
)

const defaultOrderListLimit = 50

// OrderHandler exposes the back-office order endpoints. Orders are created by
// the checkout flow and mutated by the webhook or the poll, never through
// these handlers.
type OrderHandler struct {
	orders repository.OrderRepository
	logger *slog.Logger
}

func NewOrderHandler(orders repository.OrderRepository, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// ListOrders handles GET /api/admin/orders, most recent first.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, http.StatusBadRequest, "Invalid limit", h.logger)
			return
		}
		limit = parsed
	}

	orders, err := h.orders.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, orders, h.logger)
}

// GetOrder handles GET /api/admin/orders/{orderId}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			WriteError(w, http.StatusNotFound, "Order not found", h.logger)
			return
		}
		h.logger.Error("failed to get order", "order_id", orderID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, order, h.logger)
}
