package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order persistence. UpdateStatus is
// a single unconditional UPDATE keyed by id: the poll fallback and the webhook
// may race to mark the same order paid, and last-write-wins is the accepted
// semantics since both writers set the same value.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, paidAt *time.Time) error
	List(ctx context.Context, limit int) ([]models.Order, error)
}

// InMemoryOrderRepository implements OrderRepository with in-memory storage,
// used in tests and when no database is configured.
type InMemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]models.Order
	byTxn  map[string]string
}

func NewInMemoryOrderRepository() *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[string]models.Order),
		byTxn:  make(map[string]string),
	}
}

func (r *InMemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = *order
	if order.TransactionID != "" {
		r.byTxn[order.TransactionID] = order.ID
	}
	return nil
}

func (r *InMemoryOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

func (r *InMemoryOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTxn[transactionID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	order := r.orders[id]
	return &order, nil
}

func (r *InMemoryOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	if paidAt != nil {
		order.PaidAt = paidAt
	}
	r.orders[id] = order
	return nil
}

func (r *InMemoryOrderRepository) List(ctx context.Context, limit int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
