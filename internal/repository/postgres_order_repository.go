package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresOrderRepository stores orders in Postgres through the pgx stdlib
// driver. Items, customer and address snapshots are stored as JSONB.
type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// Migrate creates the orders table if it does not exist.
func (r *PostgresOrderRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id               TEXT PRIMARY KEY,
			order_number     TEXT NOT NULL,
			user_id          TEXT,
			items            JSONB NOT NULL,
			subtotal         BIGINT NOT NULL,
			shipping         BIGINT NOT NULL,
			discount         BIGINT NOT NULL,
			total            BIGINT NOT NULL,
			customer         JSONB NOT NULL,
			shipping_address JSONB NOT NULL,
			payment_method   TEXT NOT NULL,
			transaction_id   TEXT NOT NULL,
			status           TEXT NOT NULL,
			pix_code         TEXT,
			pix_qr_code      TEXT,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL,
			paid_at          TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_orders_transaction_id ON orders (transaction_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
	`)
	if err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}

	query := `INSERT INTO orders (
		id, order_number, user_id, items, subtotal, shipping, discount, total,
		customer, shipping_address, payment_method, transaction_id, status,
		pix_code, pix_qr_code, created_at, updated_at, paid_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		order.ID, order.OrderNumber, nullString(order.UserID), items,
		order.Subtotal, order.Shipping, order.Discount, order.Total,
		customer, address, order.PaymentMethod, order.TransactionID,
		string(order.Status), order.PixCode, order.PixQRCode,
		order.CreatedAt, order.UpdatedAt, order.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getByField(ctx, "id", id)
}

func (r *PostgresOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	return r.getByField(ctx, "transaction_id", transactionID)
}

func (r *PostgresOrderRepository) getByField(ctx context.Context, field, value string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT
		id, order_number, user_id, items, subtotal, shipping, discount, total,
		customer, shipping_address, payment_method, transaction_id, status,
		pix_code, pix_qr_code, created_at, updated_at, paid_at
	FROM orders WHERE %s = $1`, field)

	row := r.db.QueryRowContext(ctx, query, value)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, paidAt *time.Time) error {
	query := `
		UPDATE orders
		SET status = $2,
		    paid_at = COALESCE($3, paid_at),
		    updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, string(status), paidAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresOrderRepository) List(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT
		id, order_number, user_id, items, subtotal, shipping, discount, total,
		customer, shipping_address, payment_method, transaction_id, status,
		pix_code, pix_qr_code, created_at, updated_at, paid_at
	FROM orders ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order    models.Order
		userID   sql.NullString
		items    []byte
		customer []byte
		address  []byte
		status   string
		paidAt   sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &userID, &items,
		&order.Subtotal, &order.Shipping, &order.Discount, &order.Total,
		&customer, &address, &order.PaymentMethod, &order.TransactionID,
		&status, &order.PixCode, &order.PixQRCode,
		&order.CreatedAt, &order.UpdatedAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}

	order.UserID = userID.String
	order.Status = models.OrderStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(customer, &order.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	return &order, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
