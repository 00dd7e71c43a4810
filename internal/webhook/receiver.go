// Package webhook processes asynchronous payment-status pushes from the
// gateway. The HTTP layer always acknowledges with 200 regardless of what
// happens here; anything that goes wrong is logged, never surfaced, so the
// gateway does not retry-storm the endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/notify"
	"github.com/dcutelaria/storefront/internal/repository"
	"github.com/dcutelaria/storefront/internal/tracking"
)

// Status tokens are classified by case-insensitive substring match against
// these sets; the gateway's vocabulary mixes languages and casings.
var (
	settledTokens   = []string{"paid", "approved", "completed", "pago", "aprovado", "concluid"}
	cancelledTokens = []string{"cancel", "expired", "expirad", "refused", "recusad", "failed", "falh", "estorn", "refund"}
)

// Outcome describes what a delivery did, for logging and tests.
type Outcome string

const (
	OutcomeNoID          Outcome = "no_transaction_id"
	OutcomeOrderNotFound Outcome = "order_not_found"
	OutcomeNoChange      Outcome = "no_change"
	OutcomeSettled       Outcome = "settled"
	OutcomeCancelled     Outcome = "cancelled"
)

// ConversionSender fires the server-side ad event.
type ConversionSender interface {
	SendPurchase(ctx context.Context, p tracking.Purchase) error
}

// AdminNotifier alerts the store operator.
type AdminNotifier interface {
	SendAdminAlert(ctx context.Context, text string) error
}

// EmailSender mails the buyer.
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// Receiver reconciles webhook deliveries against stored orders and fans out
// the post-settlement side effects.
type Receiver struct {
	orders     repository.OrderRepository
	conversion ConversionSender
	admin      AdminNotifier
	email      EmailSender
	logger     *slog.Logger

	// seen tracks transaction ids this process has already handled; a hit is
	// only a logging signal (probable gateway redelivery), the authoritative
	// idempotency check is the order's stored status below.
	seen *bloom.BloomFilter
}

func NewReceiver(
	orders repository.OrderRepository,
	conversion ConversionSender,
	admin AdminNotifier,
	email EmailSender,
	logger *slog.Logger,
) *Receiver {
	return &Receiver{
		orders:     orders,
		conversion: conversion,
		admin:      admin,
		email:      email,
		logger:     logger,
		seen:       bloom.NewWithEstimates(1_000_000, 0.01),
	}
}

// Process handles one delivery. It never returns an error: every failure mode
// is an acknowledged outcome.
func (r *Receiver) Process(ctx context.Context, body []byte) Outcome {
	txnID, status := extract(body)
	if txnID == "" {
		r.logger.Info("webhook without transaction id, acknowledging")
		return OutcomeNoID
	}

	if r.seen.TestAndAddString(txnID) {
		r.logger.Debug("webhook transaction possibly redelivered", "transaction_id", txnID)
	}

	order, err := r.orders.GetByTransactionID(ctx, txnID)
	if err != nil {
		// test events or webhooks racing order creation land here
		r.logger.Info("webhook for unknown transaction, acknowledging", "transaction_id", txnID)
		return OutcomeOrderNotFound
	}

	switch {
	case classify(status, settledTokens):
		return r.settle(ctx, order)
	case classify(status, cancelledTokens):
		return r.cancel(ctx, order)
	default:
		r.logger.Info("webhook status not actionable", "transaction_id", txnID, "status", status)
		return OutcomeNoChange
	}
}

func (r *Receiver) settle(ctx context.Context, order *models.Order) Outcome {
	if order.Status == models.OrderPaid {
		// duplicate delivery: the transition already happened, no second fan-out
		return OutcomeNoChange
	}

	paidAt := time.Now().UTC()
	if err := r.orders.UpdateStatus(ctx, order.ID, models.OrderPaid, &paidAt); err != nil {
		r.logger.Error("failed to mark order paid", "order_id", order.ID, "error", err)
		return OutcomeNoChange
	}
	order.Status = models.OrderPaid
	order.PaidAt = &paidAt

	r.logger.Info("order settled via webhook", "order_id", order.ID, "order_number", order.OrderNumber)

	// best-effort side effects, executed after the status update commits;
	// each failure is logged independently and never rolls anything back
	r.fanOut(ctx, order)
	return OutcomeSettled
}

func (r *Receiver) cancel(ctx context.Context, order *models.Order) Outcome {
	if order.Status == models.OrderCancelled {
		return OutcomeNoChange
	}
	if order.Status == models.OrderPaid {
		// never demote a paid order from a late cancellation push
		r.logger.Warn("ignoring cancellation for paid order", "order_id", order.ID)
		return OutcomeNoChange
	}

	if err := r.orders.UpdateStatus(ctx, order.ID, models.OrderCancelled, nil); err != nil {
		r.logger.Error("failed to cancel order", "order_id", order.ID, "error", err)
		return OutcomeNoChange
	}

	r.logger.Info("order cancelled via webhook", "order_id", order.ID)
	return OutcomeCancelled
}

func (r *Receiver) fanOut(ctx context.Context, order *models.Order) {
	if r.conversion != nil {
		contentIDs := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			contentIDs = append(contentIDs, item.ProductID)
		}
		err := r.conversion.SendPurchase(ctx, tracking.Purchase{
			Value:      order.Total,
			Currency:   "BRL",
			ContentIDs: contentIDs,
			OrderID:    order.ID,
			Email:      order.Customer.Email,
			Phone:      order.Customer.Phone,
			Name:       order.Customer.Name,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			Zip:        order.ShippingAddress.PostalCode,
		})
		if err != nil {
			r.logger.Warn("conversion event failed", "order_id", order.ID, "error", err)
		}
	}

	if r.admin != nil {
		if err := r.admin.SendAdminAlert(ctx, notify.OrderAlertText(order)); err != nil {
			r.logger.Warn("admin alert failed", "order_id", order.ID, "error", err)
		}
	}

	if r.email != nil {
		if err := r.email.SendOrderConfirmation(ctx, order); err != nil {
			r.logger.Warn("confirmation email failed", "order_id", order.ID, "error", err)
		}
	}
}

func classify(status string, tokens []string) bool {
	s := strings.ToLower(status)
	if s == "" {
		return false
	}
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// extract pulls the transaction id and status token out of a loosely-shaped
// payload, trying a fixed list of known key names at the top level and under
// "data". Unknown shapes resolve to an empty id, which the caller treats as
// an acknowledged no-op rather than an error.
func extract(body []byte) (txnID, status string) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", ""
	}

	scopes := []map[string]any{raw}
	if data, ok := raw["data"].(map[string]any); ok {
		scopes = append(scopes, data)
	}
	if tx, ok := raw["transaction"].(map[string]any); ok {
		scopes = append(scopes, tx)
	}

	for _, scope := range scopes {
		if txnID == "" {
			txnID = firstString(scope, "transactionId", "transaction_id", "id")
		}
		if status == "" {
			status = firstString(scope, "status", "transactionStatus", "transaction_status", "currentStatus")
		}
	}
	return txnID, status
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// numeric ids arrive for some event types
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
