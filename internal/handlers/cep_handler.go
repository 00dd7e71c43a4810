package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dcutelaria/storefront/internal/cep"
	"github.com/go-chi/chi/v5"
)

// CEPHandler proxies the postal-code lookup so the storefront prefills the
// address form without talking to the upstream service directly.
type CEPHandler struct {
	client *cep.Client
	logger *slog.Logger
}

func NewCEPHandler(client *cep.Client, logger *slog.Logger) *CEPHandler {
	return &CEPHandler{
		client: client,
		logger: logger,
	}
}

// Lookup handles GET /api/cep/{code}.
// - 200: address found
// - 400: malformed postal code, rejected before any upstream call
// - 404: well-formed but unknown postal code
func (h *CEPHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	address, err := h.client.Lookup(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, cep.ErrInvalidCEP):
			WriteError(w, http.StatusBadRequest, "CEP deve ter 8 dígitos", h.logger)
		case errors.Is(err, cep.ErrCEPNotFound):
			WriteError(w, http.StatusNotFound, "CEP não encontrado", h.logger)
		default:
			h.logger.Error("cep lookup failed", "code", code, "error", err)
			WriteError(w, http.StatusBadGateway, "Consulta de CEP indisponível", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, address, h.logger)
}
