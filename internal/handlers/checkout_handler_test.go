package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dcutelaria/storefront/internal/cart"
	"github.com/dcutelaria/storefront/internal/checkout"
	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/podpay"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/internal/service"
	"github.com/dcutelaria/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type stubGateway struct {
	createErr error
}

func (g *stubGateway) CreateTransaction(ctx context.Context, amount int64, customer models.Customer, items []podpay.Item) (*podpay.Transaction, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &podpay.Transaction{
		TransactionID: "txn_handler_1",
		Status:        "waiting_payment",
		Amount:        amount,
		Pix:           podpay.Pix{CopyPaste: "pix-copy-paste"},
	}, nil
}

func (g *stubGateway) GetTransaction(ctx context.Context, id string) (*podpay.Transaction, error) {
	return &podpay.Transaction{TransactionID: id, Status: "waiting_payment"}, nil
}

func newCheckoutRouter(t *testing.T, gateway service.PaymentGateway) (*chi.Mux, cart.Store) {
	t.Helper()

	carts := cart.NewMemoryStore()
	orders := repository.NewInMemoryOrderRepository()
	log := logger.New("error")
	poller := checkout.NewPoller(gateway, orders, time.Hour, log)
	svc := service.NewCheckoutService(checkout.NewManager(), carts, orders, gateway, poller, log)
	handler := NewCheckoutHandler(svc, log)

	r := chi.NewRouter()
	r.Post("/api/checkout", handler.StartCheckout)
	r.Get("/api/checkout/{checkoutId}", handler.GetCheckout)
	r.Post("/api/checkout/{checkoutId}/submit", handler.Submit)
	r.Post("/api/checkout/{checkoutId}/retry", handler.Retry)
	r.Post("/api/checkout/{checkoutId}/complete", handler.Complete)
	r.Delete("/api/checkout/{checkoutId}", handler.Cancel)
	return r, carts
}

func seedCheckoutCart(t *testing.T, carts cart.Store) string {
	t.Helper()

	c := cart.Cart{SessionID: "cart-checkout"}
	c.AddItem(models.CartLine{ProductID: "1", Name: "Caixa Térmica 35L", UnitPrice: 24999, Category: models.CategoryThermalBox, Quantity: 1})
	if err := carts.Save(context.Background(), &c); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return c.SessionID
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) checkout.View {
	t.Helper()

	var view checkout.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func checkoutForm() map[string]any {
	return map[string]any{
		"customer": map[string]string{
			"name":     "Maria Souza",
			"email":    "maria@example.com",
			"phone":    "11987654321",
			"document": "529.982.247-25",
		},
		"address": map[string]string{
			"postalCode": "01310100",
			"street":     "Avenida Paulista",
			"number":     "1000",
			"city":       "São Paulo",
			"state":      "SP",
		},
	}
}

func TestCheckoutFlow_SubmitToPix(t *testing.T) {
	r, carts := newCheckoutRouter(t, &stubGateway{})
	cartID := seedCheckoutCart(t, carts)

	w := postJSON(t, r, "/api/checkout", map[string]string{"cartSessionId": cartID})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	view := decodeView(t, w)
	if view.State != checkout.StateForm {
		t.Fatalf("expected form state, got %s", view.State)
	}

	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	view = decodeView(t, w)
	if view.State != checkout.StatePix {
		t.Fatalf("expected pix state, got %s", view.State)
	}
	if view.Transaction == nil || view.Transaction.Pix.CopyPaste == "" {
		t.Fatal("expected pix payload in view")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/"+view.ID, nil)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("expected status 200 on get, got %d", got.Code)
	}
}

func TestCheckoutSubmit_ValidationErrors(t *testing.T) {
	r, carts := newCheckoutRouter(t, &stubGateway{})
	cartID := seedCheckoutCart(t, carts)

	w := postJSON(t, r, "/api/checkout", map[string]string{"cartSessionId": cartID})
	view := decodeView(t, w)

	form := checkoutForm()
	form["customer"].(map[string]string)["document"] = "123"
	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", form)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Fields["document"] == "" {
		t.Error("expected a document field error")
	}
}

func TestCheckoutSubmit_GatewayErrorSurfacesRetryableState(t *testing.T) {
	gateway := &stubGateway{createErr: errors.New("gateway down")}
	r, carts := newCheckoutRouter(t, gateway)
	cartID := seedCheckoutCart(t, carts)

	w := postJSON(t, r, "/api/checkout", map[string]string{"cartSessionId": cartID})
	view := decodeView(t, w)

	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with error state, got %d", w.Code)
	}
	view = decodeView(t, w)
	if view.State != checkout.StateError {
		t.Fatalf("expected error state, got %s", view.State)
	}
	if view.ErrorMessage == "" {
		t.Fatal("expected a buyer-facing error message")
	}

	w = postJSON(t, r, "/api/checkout/"+view.ID+"/retry", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 on retry, got %d", w.Code)
	}
	view = decodeView(t, w)
	if view.State != checkout.StateForm {
		t.Fatalf("expected form state after retry, got %s", view.State)
	}

	gateway.createErr = nil
	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())
	if decodeView(t, w).State != checkout.StatePix {
		t.Fatal("expected pix after retry and resubmit")
	}
}

func TestCheckoutComplete_RequiresSuccess(t *testing.T) {
	r, carts := newCheckoutRouter(t, &stubGateway{})
	cartID := seedCheckoutCart(t, carts)

	w := postJSON(t, r, "/api/checkout", map[string]string{"cartSessionId": cartID})
	view := decodeView(t, w)
	postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())

	w = postJSON(t, r, "/api/checkout/"+view.ID+"/complete", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 before payment, got %d", w.Code)
	}
}

func TestCheckoutCancel(t *testing.T) {
	r, _ := newCheckoutRouter(t, &stubGateway{})

	w := postJSON(t, r, "/api/checkout", nil)
	view := decodeView(t, w)

	req := httptest.NewRequest(http.MethodDelete, "/api/checkout/"+view.ID, nil)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", got.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/checkout/"+view.ID, nil)
	got = httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after cancel, got %d", got.Code)
	}
}

func TestCheckoutSubmit_UnknownSession(t *testing.T) {
	r, _ := newCheckoutRouter(t, &stubGateway{})

	w := postJSON(t, r, "/api/checkout/nope/submit", checkoutForm())
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestCheckoutSubmit_RepeatedSubmitConflicts(t *testing.T) {
	r, carts := newCheckoutRouter(t, &stubGateway{})
	cartID := seedCheckoutCart(t, carts)

	w := postJSON(t, r, "/api/checkout", map[string]string{"cartSessionId": cartID})
	view := decodeView(t, w)

	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// the charge already exists: a second submit is a conflict, not a server error
	w = postJSON(t, r, "/api/checkout/"+view.ID+"/submit", checkoutForm())
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on repeat submit, got %d: %s", w.Code, w.Body.String())
	}
}
