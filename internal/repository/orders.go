package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

// OrdersRepository defines persistence for orders and their items. Reads
// return (nil, nil) when the row does not exist.
type OrdersRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, o model.Order) error
	InsertItem(ctx context.Context, tx *sqlx.Tx, it model.OrderItem) error

	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Order, error)
	Items(ctx context.Context, orderID string) ([]model.OrderItem, error)
	ItemsTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]model.OrderItem, error)

	// UpdateStatus sets the order status inside tx. Callers are responsible
	// for honoring the one-way transition gate before calling.
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.OrderStatus) error

	ListAll(ctx context.Context) ([]model.Order, error)
	ListByClient(ctx context.Context, clientID string) ([]model.Order, error)
}

type OrdersRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrdersRepository(db *sqlx.DB) *OrdersRepositoryImpl {
	return &OrdersRepositoryImpl{db: db}
}

var _ OrdersRepository = (*OrdersRepositoryImpl)(nil)

const orderColumns = `id, client_id, status, created_at, updated_at`

func (r *OrdersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, o model.Order) error {
	const q = `
		INSERT INTO orders (id, client_id, status, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
	`
	_, err := tx.ExecContext(ctx, q, o.ID, o.ClientID, o.Status.String())
	return err
}

func (r *OrdersRepositoryImpl) InsertItem(ctx context.Context, tx *sqlx.Tx, it model.OrderItem) error {
	const q = `
		INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, q, it.ID, it.OrderID, it.ProductID, it.Quantity, it.PriceAtPurchase)
	return err
}

func (r *OrdersRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := r.db.GetContext(ctx, &o, `
		SELECT `+orderColumns+` FROM orders WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate loads the order row under an exclusive lock so the status
// gate cannot race with a concurrent redelivery.
func (r *OrdersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Order, error) {
	var o model.Order
	err := tx.GetContext(ctx, &o, `
		SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrdersRepositoryImpl) Items(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		  FROM order_items WHERE order_id = ?
	`, orderID)
	return items, err
}

func (r *OrdersRepositoryImpl) ItemsTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := tx.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		  FROM order_items WHERE order_id = ?
	`, orderID)
	return items, err
}

func (r *OrdersRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.OrderStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), id)
	return err
}

func (r *OrdersRepositoryImpl) ListAll(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC
	`)
	return orders, err
}

func (r *OrdersRepositoryImpl) ListByClient(ctx context.Context, clientID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders WHERE client_id = ? ORDER BY created_at DESC
	`, clientID)
	return orders, err
}
