package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dcutelaria/storefront/internal/cart"
	"github.com/dcutelaria/storefront/internal/checkout"
	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/podpay"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/internal/taxid"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNotCompleted    = errors.New("checkout is not completed")
	ErrGatewayRejected = errors.New("payment gateway rejected the transaction")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationError carries per-field messages back to the form.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// CheckoutRequest is the submitted form. Items may be supplied directly for
// single-product flows; otherwise they come from the cart session the
// checkout was opened with.
type CheckoutRequest struct {
	Customer models.Customer        `json:"customer"`
	Address  models.ShippingAddress `json:"address"`
	Items    []models.CartLine      `json:"items,omitempty"`
	Total    int64                  `json:"total,omitempty"`
	UserID   string                 `json:"userId,omitempty"`
	Shipping int64                  `json:"shipping,omitempty"`
}

// PaymentGateway is the slice of the podpay client the checkout needs.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, amount int64, customer models.Customer, items []podpay.Item) (*podpay.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*podpay.Transaction, error)
}

// CheckoutService orchestrates the checkout flow: validates the form, creates
// the order and the PIX charge, and runs the settlement poll.
type CheckoutService struct {
	sessions *checkout.Manager
	carts    cart.Store
	orders   repository.OrderRepository
	gateway  PaymentGateway
	poller   *checkout.Poller
	logger   *slog.Logger
}

func NewCheckoutService(
	sessions *checkout.Manager,
	carts cart.Store,
	orders repository.OrderRepository,
	gateway PaymentGateway,
	poller *checkout.Poller,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		carts:    carts,
		orders:   orders,
		gateway:  gateway,
		poller:   poller,
		logger:   logger,
	}
}

// Start opens a checkout session in the form state. cartSessionID is empty
// for single-product checkouts.
func (s *CheckoutService) Start(cartSessionID string) checkout.View {
	session := s.sessions.Create(cartSessionID)
	return session.Snapshot()
}

// Get returns the current session snapshot.
func (s *CheckoutService) Get(sessionID string) (checkout.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return checkout.View{}, ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Submit validates the form and, when valid, creates the order and the PIX
// charge. Validation failure keeps the session in the form state and returns
// a *ValidationError naming each bad field.
func (s *CheckoutService) Submit(ctx context.Context, sessionID string, req CheckoutRequest) (checkout.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return checkout.View{}, ErrSessionNotFound
	}

	if verr := validateForm(req); verr != nil {
		return session.Snapshot(), verr
	}

	items, totals, err := s.resolveItems(ctx, session, req)
	if err != nil {
		return session.Snapshot(), err
	}

	if err := session.BeginProcessing(); err != nil {
		return session.Snapshot(), err
	}

	amount := totals.Total + req.Shipping
	if req.Total > 0 {
		// single-product flows pre-supply the charge amount
		amount = req.Total
	}

	tx, err := s.gateway.CreateTransaction(ctx, amount, req.Customer, toGatewayItems(items))
	if err != nil {
		s.logger.Error("create transaction failed", "session_id", sessionID, "error", err)
		if ferr := session.Fail(userFacingGatewayError(err)); ferr != nil {
			s.logger.Warn("could not record checkout failure", "session_id", sessionID, "error", ferr)
		}
		return session.Snapshot(), fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     generateOrderNumber(now),
		UserID:          req.UserID,
		Items:           items,
		Subtotal:        totals.ThermalSubtotal + totals.OtherSubtotal,
		Shipping:        req.Shipping,
		Discount:        totals.Discount,
		Total:           amount,
		Customer:        req.Customer,
		ShippingAddress: req.Address,
		PaymentMethod:   "pix",
		TransactionID:   tx.TransactionID,
		Status:          models.OrderWaitingPayment,
		PixCode:         tx.Pix.CopyPaste,
		PixQRCode:       tx.Pix.QRCodeImage,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("persist order failed", "session_id", sessionID, "transaction_id", tx.TransactionID, "error", err)
		if ferr := session.Fail("Não foi possível registrar o pedido. Tente novamente."); ferr != nil {
			s.logger.Warn("could not record checkout failure", "session_id", sessionID, "error", ferr)
		}
		return session.Snapshot(), fmt.Errorf("persist order: %w", err)
	}

	if err := session.EnterPix(order.ID, tx); err != nil {
		return session.Snapshot(), err
	}

	s.logger.Info("checkout submitted",
		"session_id", sessionID,
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"transaction_id", tx.TransactionID,
		"amount", amount,
	)

	// fallback confirmation path, in parallel with the webhook
	s.poller.Start(context.WithoutCancel(ctx), session)

	return session.Snapshot(), nil
}

// Retry moves an errored session back to the form.
func (s *CheckoutService) Retry(sessionID string) (checkout.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return checkout.View{}, ErrSessionNotFound
	}
	if err := session.Retry(); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// Complete finishes a successful checkout: the cart session backing it is
// cleared and the session is dropped. Only valid in the success state.
func (s *CheckoutService) Complete(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if session.Snapshot().State != checkout.StateSuccess {
		return ErrNotCompleted
	}

	if cartID := session.CartSessionID(); cartID != "" {
		if err := s.carts.Delete(ctx, cartID); err != nil {
			s.logger.Warn("failed to clear cart after checkout", "cart_session_id", cartID, "error", err)
		}
	}

	s.sessions.Remove(sessionID)
	return nil
}

// Cancel abandons a checkout at any state: the poll stops and the session is
// dropped. A server-side order already created stays in waiting_payment for
// the webhook or an operator to reconcile.
func (s *CheckoutService) Cancel(sessionID string) error {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return ErrSessionNotFound
	}
	s.sessions.Remove(sessionID)
	return nil
}

func (s *CheckoutService) resolveItems(ctx context.Context, session *checkout.Session, req CheckoutRequest) ([]models.CartLine, cart.Totals, error) {
	if len(req.Items) > 0 {
		c := cart.Cart{Lines: req.Items}
		return req.Items, c.Totals(), nil
	}

	cartID := session.CartSessionID()
	if cartID == "" {
		return nil, cart.Totals{}, ErrEmptyCart
	}

	stored, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, cart.Totals{}, ErrEmptyCart
		}
		return nil, cart.Totals{}, fmt.Errorf("load cart: %w", err)
	}
	if len(stored.Lines) == 0 {
		return nil, cart.Totals{}, ErrEmptyCart
	}
	return stored.Lines, stored.Totals(), nil
}

func validateForm(req CheckoutRequest) *ValidationError {
	fields := make(map[string]string)

	if strings.TrimSpace(req.Customer.Name) == "" {
		fields["name"] = "Informe seu nome completo"
	}
	if !emailPattern.MatchString(req.Customer.Email) {
		fields["email"] = "E-mail inválido"
	}
	if len(models.OnlyDigits(req.Customer.Phone)) < 10 {
		fields["phone"] = "Telefone deve ter ao menos 10 dígitos"
	}
	if !taxid.Valid(req.Customer.Document) {
		fields["document"] = "CPF ou CNPJ inválido"
	}
	if len(models.OnlyDigits(req.Address.PostalCode)) != 8 {
		fields["postalCode"] = "CEP deve ter 8 dígitos"
	}
	if strings.TrimSpace(req.Address.Street) == "" {
		fields["street"] = "Informe o endereço"
	}
	if strings.TrimSpace(req.Address.City) == "" {
		fields["city"] = "Informe a cidade"
	}
	if strings.TrimSpace(req.Address.State) == "" {
		fields["state"] = "Informe o estado"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func toGatewayItems(lines []models.CartLine) []podpay.Item {
	items := make([]podpay.Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, podpay.Item{
			Title:     line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Tangible:  true,
		})
	}
	return items
}

func userFacingGatewayError(err error) string {
	var apiErr *podpay.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Não foi possível gerar a cobrança PIX. Tente novamente."
}

// generateOrderNumber builds the human-readable order token: "DC" plus the
// creation time in base36.
func generateOrderNumber(t time.Time) string {
	return "DC" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}
