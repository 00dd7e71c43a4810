package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dcutelaria/storefront/internal/cart"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
)

func newCartRouter() (*chi.Mux, cart.Store) {
	store := cart.NewMemoryStore()
	products := repository.NewInMemoryProductRepository()
	handler := NewCartHandler(store, products, logger.New("error"))

	r := chi.NewRouter()
	r.Post("/api/cart", handler.CreateCart)
	r.Get("/api/cart/{sessionId}", handler.GetCart)
	r.Delete("/api/cart/{sessionId}", handler.ClearCart)
	r.Post("/api/cart/{sessionId}/items", handler.AddItem)
	r.Put("/api/cart/{sessionId}/items/{productId}", handler.UpdateQuantity)
	r.Delete("/api/cart/{sessionId}/items/{productId}", handler.RemoveItem)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, CartResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp CartResponse
	if w.Code == http.StatusOK || w.Code == http.StatusCreated {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode cart response: %v", err)
		}
	}
	return w, resp
}

func TestCreateCart(t *testing.T) {
	r, _ := newCartRouter()

	w, resp := doJSON(t, r, http.MethodPost, "/api/cart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if len(resp.Lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(resp.Lines))
	}
}

func TestAddItem_SnapshotsCatalogPrice(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)

	w, resp := doJSON(t, r, http.MethodPost, "/api/cart/"+created.SessionID+"/items",
		map[string]any{"productId": 1, "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(resp.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(resp.Lines))
	}
	line := resp.Lines[0]
	if line.UnitPrice != 24999 {
		t.Errorf("expected catalog price 24999, got %d", line.UnitPrice)
	}
	if line.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", line.Quantity)
	}
	if resp.Totals.Total != 49998 {
		t.Errorf("expected total 49998, got %d", resp.Totals.Total)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/cart/"+created.SessionID+"/items",
		map[string]any{"productId": 999, "quantity": 1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestAddItem_DiscountAppearsAtThreshold(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)
	path := "/api/cart/" + created.SessionID + "/items"

	_, resp := doJSON(t, r, http.MethodPost, path, map[string]any{"productId": 1, "quantity": 2})
	if resp.Totals.HasDiscount {
		t.Fatal("discount must not apply below three thermal boxes")
	}
	if resp.PotentialSavings == 0 {
		t.Error("expected a savings hint below the threshold")
	}

	_, resp = doJSON(t, r, http.MethodPost, path, map[string]any{"productId": 2, "quantity": 1})
	if !resp.Totals.HasDiscount {
		t.Fatal("expected discount at three thermal boxes")
	}
	if resp.PotentialSavings != 0 {
		t.Errorf("expected no savings hint once qualified, got %d", resp.PotentialSavings)
	}
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)
	base := "/api/cart/" + created.SessionID

	doJSON(t, r, http.MethodPost, base+"/items", map[string]any{"productId": 5, "quantity": 1})

	w, resp := doJSON(t, r, http.MethodPut, base+"/items/5", map[string]any{"quantity": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(resp.Lines) != 0 {
		t.Errorf("expected line removed at quantity zero, got %d lines", len(resp.Lines))
	}
}

func TestRemoveItem(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)
	base := "/api/cart/" + created.SessionID

	doJSON(t, r, http.MethodPost, base+"/items", map[string]any{"productId": 5, "quantity": 1})
	doJSON(t, r, http.MethodPost, base+"/items", map[string]any{"productId": 6, "quantity": 1})

	w, resp := doJSON(t, r, http.MethodDelete, base+"/items/5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].ProductID != "6" {
		t.Errorf("expected only product 6 left, got %+v", resp.Lines)
	}
}

func TestGetCart_NotFound(t *testing.T) {
	r, _ := newCartRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/cart/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestClearCart(t *testing.T) {
	r, _ := newCartRouter()

	_, created := doJSON(t, r, http.MethodPost, "/api/cart", nil)
	base := "/api/cart/" + created.SessionID
	doJSON(t, r, http.MethodPost, base+"/items", map[string]any{"productId": 1, "quantity": 1})

	req := httptest.NewRequest(http.MethodDelete, base, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, base, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected cart gone after clear, got %d", w.Code)
	}
}
