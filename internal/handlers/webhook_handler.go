package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dcutelaria/storefront/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives PodPay payment notifications. It acknowledges with
// 200 no matter what the body contains, so the gateway never enters a
// redelivery storm over a payload we cannot use.
type WebhookHandler struct {
	receiver *webhook.Receiver
	logger   *slog.Logger
}

func NewWebhookHandler(receiver *webhook.Receiver, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
		logger:   logger,
	}
}

// HandlePodPay handles POST /api/webhook/podpay.
func (h *WebhookHandler) HandlePodPay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("failed to read webhook body", "error", err)
		WriteJSON(w, http.StatusOK, map[string]bool{"received": true}, h.logger)
		return
	}

	outcome := h.receiver.Process(r.Context(), body)
	h.logger.Info("webhook processed", "outcome", outcome)

	WriteJSON(w, http.StatusOK, map[string]bool{"received": true}, h.logger)
}
