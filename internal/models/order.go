package models

import (
	"strings"
	"time"
)

// OrderStatus is the local projection of the gateway transaction status.
type OrderStatus string

const (
	OrderWaitingPayment OrderStatus = "waiting_payment"
	OrderPaid           OrderStatus = "paid"
	OrderCancelled      OrderStatus = "cancelled"
)

// CartLine is a snapshot of a cart item at order time. Quantity is always >= 1;
// a line that drops to zero is removed by the cart, never stored.
type CartLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	ImageRef  string `json:"imageRef,omitempty"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
}

// Customer holds the buyer identity collected at checkout.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

// ShippingAddress is the delivery address, prefilled from the postal-code lookup.
type ShippingAddress struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Order is created once at checkout submission with status waiting_payment.
// Its status is mutated only by the webhook receiver or the polling fallback,
// and the order itself is never deleted by the application.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          string          `json:"userId,omitempty"`
	Items           []CartLine      `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	Shipping        int64           `json:"shipping"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	Customer        Customer        `json:"customer"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TransactionID   string          `json:"transactionId"`
	Status          OrderStatus     `json:"status"`
	PixCode         string          `json:"pixCode,omitempty"`
	PixQRCode       string          `json:"pixQrCode,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
}

// OnlyDigits strips every non-digit rune; documents and phones are normalized
// through this before validation or forwarding to the gateway.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
