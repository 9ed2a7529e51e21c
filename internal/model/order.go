package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPaymentFailed, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaymentFailed || s == OrderStatusConfirmed || s == OrderStatusCancelled
}

// CanTransitionTo enforces the one-way status gate:
// PENDING_PAYMENT -> {PAYMENT_FAILED | CONFIRMED | CANCELLED}, nothing else.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPendingPayment && next.Valid() && next.Terminal()
}

// Order is the DB entity persisted in the orders table.
type Order struct {
	ID        string      `db:"id" json:"id"`
	ClientID  string      `db:"client_id" json:"clientId"`
	Status    OrderStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem captures the product price at order-creation time; it never
// tracks later product price changes.
type OrderItem struct {
	ID              string          `db:"id" json:"id"`
	OrderID         string          `db:"order_id" json:"orderId"`
	ProductID       string          `db:"product_id" json:"productId"`
	Quantity        int             `db:"quantity" json:"quantity"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase" json:"priceAtPurchase"`
}
