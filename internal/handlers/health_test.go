package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dcutelaria/storefront/pkg/logger"
)

func TestHealthCheck(t *testing.T) {
	handler := NewHealthHandler(logger.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
	if resp.Service != "storefront-api" {
		t.Errorf("expected service storefront-api, got %s", resp.Service)
	}
	if resp.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}
