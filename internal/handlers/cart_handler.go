package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dcutelaria/storefront/internal/cart"
	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CartHandler handles cart HTTP requests. Every read response carries the
// derived totals and the savings hint so clients never compute money locally.
type CartHandler struct {
	store    cart.Store
	products repository.ProductRepository
	logger   *slog.Logger
}

func NewCartHandler(store cart.Store, products repository.ProductRepository, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		store:    store,
		products: products,
		logger:   logger,
	}
}

// CartResponse is the envelope for every cart read.
type CartResponse struct {
	SessionID        string            `json:"sessionId"`
	Lines            []models.CartLine `json:"lines"`
	Totals           cart.Totals       `json:"totals"`
	PotentialSavings int64             `json:"potentialSavings"`
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CreateCart handles POST /api/cart and opens an empty cart session.
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c := &cart.Cart{SessionID: uuid.New().String()}

	if err := h.store.Save(r.Context(), c); err != nil {
		h.logger.Error("failed to create cart", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.respond(w, c)
}

// GetCart handles GET /api/cart/{sessionId}.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	h.respond(w, c)
}

// AddItem handles POST /api/cart/{sessionId}/items. The line snapshot comes
// from the catalog, never from the client.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	product, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			WriteError(w, http.StatusNotFound, "Product not found", h.logger)
			return
		}
		h.logger.Error("failed to load product", "productId", req.ProductID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	c, err := h.store.Get(r.Context(), sessionID)
	if errors.Is(err, cart.ErrCartNotFound) {
		c = &cart.Cart{SessionID: sessionID}
	} else if err != nil {
		h.logger.Error("failed to load cart", "session_id", sessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	c.AddItem(models.CartLine{
		ProductID: strconv.FormatInt(product.ID, 10),
		Name:      product.Name,
		UnitPrice: product.Price,
		ImageRef:  product.ImageRef,
		Category:  product.Category,
		Quantity:  req.Quantity,
	})

	if err := h.store.Save(r.Context(), c); err != nil {
		h.logger.Error("failed to save cart", "session_id", sessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.logger.Info("add to cart",
		"session_id", sessionID,
		"product_id", product.ID,
		"product_name", product.Name,
		"quantity", req.Quantity,
		"value", float64(product.Price*int64(max(req.Quantity, 1)))/100,
	)

	h.respond(w, c)
}

// UpdateQuantity handles PUT /api/cart/{sessionId}/items/{productId}.
// A quantity of zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	c.UpdateQuantity(productID, req.Quantity)
	if err := h.store.Save(r.Context(), c); err != nil {
		h.logger.Error("failed to save cart", "session_id", c.SessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.respond(w, c)
}

// RemoveItem handles DELETE /api/cart/{sessionId}/items/{productId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	c.RemoveItem(productID)
	if err := h.store.Save(r.Context(), c); err != nil {
		h.logger.Error("failed to save cart", "session_id", c.SessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.respond(w, c)
}

// ClearCart handles DELETE /api/cart/{sessionId}.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if err := h.store.Delete(r.Context(), sessionID); err != nil && !errors.Is(err, cart.ErrCartNotFound) {
		h.logger.Error("failed to clear cart", "session_id", sessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true}, h.logger)
}

func (h *CartHandler) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	sessionID := chi.URLParam(r, "sessionId")

	c, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			WriteError(w, http.StatusNotFound, "Cart not found", h.logger)
			return nil, false
		}
		h.logger.Error("failed to load cart", "session_id", sessionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return nil, false
	}
	return c, true
}

func (h *CartHandler) respond(w http.ResponseWriter, c *cart.Cart) {
	WriteJSON(w, http.StatusOK, CartResponse{
		SessionID:        c.SessionID,
		Lines:            c.Lines,
		Totals:           c.Totals(),
		PotentialSavings: c.PotentialSavings(),
	}, h.logger)
}
