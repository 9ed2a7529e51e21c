package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/order-pipeline/internal/logger"
	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/repository"
	"github.com/jmehdipour/order-pipeline/internal/util"
)

// ErrNoItems is returned when an order request carries no items.
var ErrNoItems = errors.New("order must contain at least one item")

// ErrInvalidQuantity is returned when an item quantity is zero or negative.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// ProductNotFoundError identifies which requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Service creates order aggregates and serves order reads.
//
// Create writes the order, its items and the ORDER_CREATED outbox row in a
// single database transaction, so either all of them become visible or none
// do. Nothing is published to the broker here; the relay picks the outbox
// row up asynchronously.
type Service struct {
	db       *sqlx.DB
	orders   repository.OrdersRepository
	products repository.ProductsRepository
	outbox   repository.OutboxRepository
}

func NewService(db *sqlx.DB, orders repository.OrdersRepository, products repository.ProductsRepository, outbox repository.OutboxRepository) *Service {
	return &Service{
		db:       db,
		orders:   orders,
		products: products,
		outbox:   outbox,
	}
}

// Create validates the requested items, snapshots current product prices into
// the order items and stages the ORDER_CREATED event, all atomically. It does
// NOT check or reserve stock; stock is settled later by the inventory worker.
func (s *Service) Create(ctx context.Context, clientID string, items []model.OrderItemRequest) (*model.Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, ErrInvalidQuantity)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetByIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	priceByID := make(map[string]model.Product, len(products))
	for _, p := range products {
		priceByID[p.ID] = p
	}
	for _, it := range items {
		if _, ok := priceByID[it.ProductID]; !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
	}

	o := model.Order{
		ID:       util.New(),
		ClientID: clientID,
		Status:   model.OrderStatusPendingPayment,
	}
	if err := s.orders.Insert(ctx, tx, o); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		item := model.OrderItem{
			ID:              util.New(),
			OrderID:         o.ID,
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: priceByID[it.ProductID].Price,
		}
		if err := s.orders.InsertItem(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}

	payload, err := json.Marshal(model.OrderCreatedPayload{
		OrderID:  o.ID,
		ClientID: o.ClientID,
		Items:    items,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	ev := model.OutboxEvent{
		ID:        util.New(),
		EventType: model.EventOrderCreated,
		Payload:   payload,
	}
	if err := s.outbox.Insert(ctx, tx, ev); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.OrdersTotal.WithLabelValues("created").Inc()
	logger.L().Info("order created",
		zap.String("order_id", o.ID),
		zap.String("client_id", clientID),
		zap.Int("items", len(items)),
	)

	return &o, nil
}

// Get returns the order with its items, or (nil, nil) when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}

	items, err := s.orders.Items(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	o.Items = items

	return o, nil
}

// List returns all orders for admins, or the client's own orders otherwise.
func (s *Service) List(ctx context.Context, clientID string, admin bool) ([]model.Order, error) {
	if admin {
		return s.orders.ListAll(ctx)
	}
	return s.orders.ListByClient(ctx, clientID)
}
