package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/internal/tracking"
	"github.com/dcutelaria/storefront/pkg/logger"
)

type fakeFanOut struct {
	mu          sync.Mutex
	conversions []tracking.Purchase
	alerts      []string
	emails      []string
	fail        bool
}

func (f *fakeFanOut) SendPurchase(ctx context.Context, p tracking.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversions = append(f.conversions, p)
	if f.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeFanOut) SendAdminAlert(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, text)
	if f.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeFanOut) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, order.Customer.Email)
	if f.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func setupReceiver(t *testing.T) (*Receiver, *repository.InMemoryOrderRepository, *fakeFanOut) {
	t.Helper()
	orders := repository.NewInMemoryOrderRepository()
	fanOut := &fakeFanOut{}
	r := NewReceiver(orders, fanOut, fanOut, fanOut, logger.New("error"))
	return r, orders, fanOut
}

func storedOrder(t *testing.T, orders repository.OrderRepository, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            "ord-1",
		OrderNumber:   "DCABC1",
		TransactionID: "txn-1",
		Status:        status,
		Total:         75998,
		Items: []models.CartLine{
			{ProductID: "2", Name: "Caixa Térmica 45L", UnitPrice: 29999, Quantity: 2},
		},
		Customer: models.Customer{Name: "João da Silva", Email: "joao@example.com", Phone: "11987654321"},
	}
	if err := orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	return order
}

func TestProcess_SettlesOrder(t *testing.T) {
	r, orders, fanOut := setupReceiver(t)
	storedOrder(t, orders, models.OrderWaitingPayment)

	outcome := r.Process(context.Background(), []byte(`{"id":"txn-1","status":"paid"}`))
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %s, want settled", outcome)
	}

	order, err := orders.GetByID(context.Background(), "ord-1")
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}
	if order.PaidAt == nil {
		t.Error("expected PaidAt stamped")
	}

	if len(fanOut.conversions) != 1 {
		t.Errorf("conversions = %d, want 1", len(fanOut.conversions))
	}
	if len(fanOut.alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(fanOut.alerts))
	}
	if len(fanOut.emails) != 1 {
		t.Errorf("emails = %d, want 1", len(fanOut.emails))
	}
	if fanOut.conversions[0].Value != 75998 {
		t.Errorf("conversion value = %d", fanOut.conversions[0].Value)
	}
}

func TestProcess_DuplicateDeliveryIsNoOp(t *testing.T) {
	r, orders, fanOut := setupReceiver(t)
	storedOrder(t, orders, models.OrderWaitingPayment)

	payload := []byte(`{"id":"txn-1","status":"paid"}`)

	if outcome := r.Process(context.Background(), payload); outcome != OutcomeSettled {
		t.Fatalf("first delivery outcome = %s", outcome)
	}
	first, _ := orders.GetByID(context.Background(), "ord-1")

	time.Sleep(2 * time.Millisecond)
	if outcome := r.Process(context.Background(), payload); outcome != OutcomeNoChange {
		t.Fatalf("second delivery outcome = %s, want no_change", outcome)
	}

	// exactly one paid-at, exactly one fan-out sequence
	second, _ := orders.GetByID(context.Background(), "ord-1")
	if !second.PaidAt.Equal(*first.PaidAt) {
		t.Error("duplicate delivery changed PaidAt")
	}
	if len(fanOut.conversions) != 1 || len(fanOut.alerts) != 1 || len(fanOut.emails) != 1 {
		t.Errorf("duplicate delivery repeated fan-out: %d/%d/%d",
			len(fanOut.conversions), len(fanOut.alerts), len(fanOut.emails))
	}
}

func TestProcess_NoTransactionID(t *testing.T) {
	r, _, fanOut := setupReceiver(t)

	for _, payload := range []string{`{}`, `{"event":"ping"}`, `not json`, `{"data":{}}`} {
		if outcome := r.Process(context.Background(), []byte(payload)); outcome != OutcomeNoID {
			t.Errorf("Process(%q) = %s, want no_transaction_id", payload, outcome)
		}
	}
	if len(fanOut.conversions) != 0 {
		t.Error("no fan-out expected")
	}
}

func TestProcess_UnknownTransaction(t *testing.T) {
	r, _, _ := setupReceiver(t)

	outcome := r.Process(context.Background(), []byte(`{"id":"txn-ghost","status":"paid"}`))
	if outcome != OutcomeOrderNotFound {
		t.Errorf("outcome = %s, want order_not_found", outcome)
	}
}

func TestProcess_CancellationTokens(t *testing.T) {
	tests := []string{"cancelled", "canceled", "EXPIRED", "recusada", "payment_failed", "estornado"}

	for _, status := range tests {
		t.Run(status, func(t *testing.T) {
			r, orders, _ := setupReceiver(t)
			storedOrder(t, orders, models.OrderWaitingPayment)

			payload := []byte(`{"data":{"transaction_id":"txn-1","transaction_status":"` + status + `"}}`)
			if outcome := r.Process(context.Background(), payload); outcome != OutcomeCancelled {
				t.Fatalf("outcome = %s, want cancelled", outcome)
			}

			order, _ := orders.GetByID(context.Background(), "ord-1")
			if order.Status != models.OrderCancelled {
				t.Errorf("status = %s", order.Status)
			}
		})
	}
}

func TestProcess_LateCancellationNeverDemotesPaid(t *testing.T) {
	r, orders, _ := setupReceiver(t)
	storedOrder(t, orders, models.OrderPaid)

	outcome := r.Process(context.Background(), []byte(`{"id":"txn-1","status":"expired"}`))
	if outcome != OutcomeNoChange {
		t.Fatalf("outcome = %s, want no_change", outcome)
	}

	order, _ := orders.GetByID(context.Background(), "ord-1")
	if order.Status != models.OrderPaid {
		t.Errorf("paid order was demoted to %s", order.Status)
	}
}

func TestProcess_FanOutFailureDoesNotAffectStatus(t *testing.T) {
	r, orders, fanOut := setupReceiver(t)
	fanOut.fail = true
	storedOrder(t, orders, models.OrderWaitingPayment)

	outcome := r.Process(context.Background(), []byte(`{"id":"txn-1","status":"approved"}`))
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %s, want settled despite fan-out failures", outcome)
	}

	order, _ := orders.GetByID(context.Background(), "ord-1")
	if order.Status != models.OrderPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}

	// every task was attempted even though each failed
	if len(fanOut.conversions) != 1 || len(fanOut.alerts) != 1 || len(fanOut.emails) != 1 {
		t.Errorf("expected all tasks attempted: %d/%d/%d",
			len(fanOut.conversions), len(fanOut.alerts), len(fanOut.emails))
	}
}

func TestExtract_ShapeFallbackOrder(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantID     string
		wantStatus string
	}{
		{"top level id", `{"id":"t1","status":"paid"}`, "t1", "paid"},
		{"camelCase", `{"transactionId":"t2","transactionStatus":"paid"}`, "t2", "paid"},
		{"snake_case under data", `{"data":{"transaction_id":"t3","transaction_status":"paid"}}`, "t3", "paid"},
		{"nested transaction object", `{"transaction":{"id":"t4","status":"pago"}}`, "t4", "pago"},
		{"numeric id", `{"id":12345,"status":"paid"}`, "12345", "paid"},
		{"status at top, id nested", `{"status":"paid","data":{"id":"t5"}}`, "t5", "paid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, status := extract([]byte(tt.payload))
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
		})
	}
}
