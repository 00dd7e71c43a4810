package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error body. The message is the buyer-facing text;
// secrets and upstream detail stay in the logs.
func WriteError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	WriteJSON(w, status, map[string]string{"error": message}, logger)
}

// WriteFieldErrors writes a 422 with one message per invalid checkout field,
// keyed the way the form names its inputs.
func WriteFieldErrors(w http.ResponseWriter, fields map[string]string, logger *slog.Logger) {
	WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "Validation failed",
		"fields": fields,
	}, logger)
}
