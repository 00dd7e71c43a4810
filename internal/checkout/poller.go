package checkout

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/podpay"
	"github.com/dcutelaria/storefront/internal/repository"
)

// PollInterval is how often a pix-state session asks the gateway for the
// transaction status.
const PollInterval = 5 * time.Second

// PollWindow caps how long a single session is polled. PIX charges expire on
// the gateway side well within this; past it the webhook is the only path.
const PollWindow = 30 * time.Minute

// settledStatuses are the gateway vocabulary for a paid transaction, in both
// languages the gateway has been seen using. Matching is a case-insensitive
// exact comparison.
var settledStatuses = []string{
	"paid", "approved", "completed",
	"pago", "aprovado", "concluido", "concluído",
}

// deadStatuses are the vocabulary for a transaction that can no longer settle:
// the buyer refused it, the gateway voided it, or the charge expired.
var deadStatuses = []string{
	"cancelled", "canceled", "refused", "expired", "refunded",
	"cancelado", "cancelada", "recusado", "expirado", "estornado",
}

// Settled reports whether a gateway status token means the transaction is paid.
func Settled(status string) bool {
	return matchesStatus(status, settledStatuses)
}

// Dead reports whether a gateway status token means the transaction is
// terminally unpayable.
func Dead(status string) bool {
	return matchesStatus(status, deadStatuses)
}

func matchesStatus(status string, want []string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, w := range want {
		if s == w {
			return true
		}
	}
	return false
}

// Gateway is the slice of the podpay client the poller needs.
type Gateway interface {
	GetTransaction(ctx context.Context, id string) (*podpay.Transaction, error)
}

// Poller watches a pix-state session until the gateway reports settlement or
// the session is torn down. It is the fallback path running in parallel with
// the webhook receiver.
type Poller struct {
	gateway  Gateway
	orders   repository.OrderRepository
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
}

func NewPoller(gateway Gateway, orders repository.OrderRepository, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = PollInterval
	}
	return &Poller{
		gateway:  gateway,
		orders:   orders,
		interval: interval,
		window:   PollWindow,
		logger:   logger,
	}
}

// Start launches the watch loop for a session in its own goroutine and wires
// cancellation into the session so Close tears the loop down.
func (p *Poller) Start(ctx context.Context, s *Session) {
	ctx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	go p.watch(ctx, s)
}

// watch issues exactly one GetTransaction per tick. It stops on settlement, on
// a terminally dead transaction, on teardown, or when the poll window elapses.
func (p *Poller) watch(ctx context.Context, s *Session) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.window)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			p.logger.Warn("payment poll window elapsed", "session_id", s.ID())
			s.stopPolling()
			return
		case <-ticker.C:
			if p.tick(ctx, s) {
				return
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context, s *Session) (done bool) {
	txnID := s.transactionID()
	if txnID == "" {
		return false
	}

	tx, err := p.gateway.GetTransaction(ctx, txnID)
	if err != nil {
		// transient failures just wait for the next tick
		p.logger.Warn("poll transaction failed", "transaction_id", txnID, "error", err)
		return false
	}

	if Dead(tx.Status) {
		view := s.Snapshot()
		// a paid order is never demoted, even if the gateway flips afterwards
		order, err := p.orders.GetByID(ctx, view.OrderID)
		if err == nil && order.Status != models.OrderPaid {
			if err := p.orders.UpdateStatus(ctx, view.OrderID, models.OrderCancelled, nil); err != nil {
				p.logger.Error("failed to mark order cancelled from poll",
					"order_id", view.OrderID,
					"transaction_id", txnID,
					"error", err,
				)
			} else {
				p.logger.Info("charge died before settlement", "order_id", view.OrderID, "status", tx.Status)
			}
		}
		if err := s.failPix("O pagamento PIX expirou ou foi cancelado. Tente novamente."); err != nil {
			p.logger.Warn("session already left pix state", "session_id", s.ID(), "error", err)
		}
		return true
	}

	if !Settled(tx.Status) {
		return false
	}

	if s.markOrderSavedOnce() {
		paidAt := time.Now().UTC()
		if tx.PaidAt != nil {
			paidAt = *tx.PaidAt
		}
		view := s.Snapshot()
		if err := p.orders.UpdateStatus(ctx, view.OrderID, models.OrderPaid, &paidAt); err != nil {
			p.logger.Error("failed to mark order paid from poll",
				"order_id", view.OrderID,
				"transaction_id", txnID,
				"error", err,
			)
			// the status write failed; webhook or a later operator pass reconciles
		} else {
			p.logger.Info("order settled via poll", "order_id", view.OrderID, "transaction_id", txnID)
		}
	}

	if err := s.succeed(); err != nil {
		p.logger.Warn("session already left pix state", "session_id", s.ID(), "error", err)
	}
	return true
}
