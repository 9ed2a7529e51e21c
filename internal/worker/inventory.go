package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/rabbit"
	"github.com/jmehdipour/order-pipeline/internal/repository"
)

// permanentError marks a failure that redelivery cannot fix. The consumer
// rejects such messages without requeue, which routes them to the queue's
// dead-letter binding. Everything else is treated as transient and requeued
// after a short pause.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// requeueDelay keeps a broken database from spinning the
// nack-redeliver-nack loop at full speed.
const requeueDelay = 2 * time.Second

// InventoryWorker settles stock for paid orders and finalizes failed ones.
//
// PAYMENT_CONFIRMED: in one transaction, lock the order row, re-check it is
// still PENDING_PAYMENT (the idempotency gate for broker redeliveries), lock
// every product row in ascending product id order, and either deduct all
// items and confirm, or cancel without touching stock if any product falls
// short. Stock never goes negative and is never partially deducted.
//
// PAYMENT_FAILED: same gate, then mark the order PAYMENT_FAILED.
type InventoryWorker struct {
	db       *sqlx.DB
	conn     *rabbit.Conn
	orders   repository.OrdersRepository
	products repository.ProductsRepository
	log      *zap.Logger
}

func NewInventoryWorker(db *sqlx.DB, conn *rabbit.Conn, orders repository.OrdersRepository, products repository.ProductsRepository, log *zap.Logger) *InventoryWorker {
	return &InventoryWorker{
		db:       db,
		conn:     conn,
		orders:   orders,
		products: products,
		log:      log,
	}
}

// Run declares both queues and consumes them until ctx is canceled.
func (w *InventoryWorker) Run(ctx context.Context) error {
	specs := []rabbit.QueueSpec{
		{
			Name:          rabbit.QueuePaymentConfirmed,
			BindingKey:    model.EventPaymentConfirmed,
			DeadLetterKey: rabbit.QueuePaymentConfirmed + ".dlq",
		},
		{
			Name:          rabbit.QueuePaymentFailed,
			BindingKey:    model.EventPaymentFailed,
			DeadLetterKey: rabbit.QueuePaymentFailed + ".dlq",
		},
	}
	for _, spec := range specs {
		if err := w.conn.DeclareQueue(spec); err != nil {
			return err
		}
	}

	confirmed, err := w.conn.Consume(rabbit.QueuePaymentConfirmed, 1)
	if err != nil {
		return err
	}
	failed, err := w.conn.Consume(rabbit.QueuePaymentFailed, 1)
	if err != nil {
		return err
	}

	w.log.Info("inventory worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("inventory worker stopped")
			return ctx.Err()
		case d, ok := <-confirmed:
			if !ok {
				return fmt.Errorf("consume channel closed")
			}
			w.handle(ctx, d, w.confirmOrder)
		case d, ok := <-failed:
			if !ok {
				return fmt.Errorf("consume channel closed")
			}
			w.handle(ctx, d, w.failOrder)
		}
	}
}

func (w *InventoryWorker) handle(ctx context.Context, d amqp.Delivery, fn func(context.Context, string) error) {
	var ev model.PaymentOutcomePayload
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		w.log.Error("malformed payment event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := fn(ctx, ev.OrderID); err != nil {
		if isPermanent(err) {
			w.log.Error("dropping payment event",
				zap.String("order_id", ev.OrderID),
				zap.Error(err),
			)
			_ = d.Nack(false, false)
			return
		}

		w.log.Warn("transient failure, requeueing",
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(requeueDelay):
		}
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}

// confirmOrder runs the stock settlement transaction for a paid order.
func (w *InventoryWorker) confirmOrder(ctx context.Context, orderID string) error {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	o, err := w.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}
	if o == nil {
		return permanent(fmt.Errorf("order %s not found", orderID))
	}
	if o.Status != model.OrderStatusPendingPayment {
		// Already settled: redelivered event, drop it quietly.
		w.log.Info("order already settled, skipping",
			zap.String("order_id", orderID),
			zap.String("status", o.Status.String()),
		)
		return nil
	}

	items, err := w.orders.ItemsTx(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	// Lock product rows in ascending id order so two settlements touching
	// the same products can never deadlock each other.
	needs := planDeduction(items)
	stock := make(map[string]int, len(needs))
	for _, n := range needs {
		p, err := w.products.GetForUpdate(ctx, tx, n.ProductID)
		if err != nil {
			return fmt.Errorf("lock product %s: %w", n.ProductID, err)
		}
		if p == nil {
			return permanent(fmt.Errorf("product %s not found for order %s", n.ProductID, orderID))
		}
		stock[p.ID] = p.Stock
	}

	switch decideSettlement(o.Status, needs, stock) {
	case settleCancel:
		if err := w.orders.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		metrics.OrdersTotal.WithLabelValues("cancelled").Inc()
		w.log.Info("order cancelled, insufficient stock", zap.String("order_id", orderID))
		return nil

	case settleConfirm:
		for _, n := range needs {
			if err := w.products.DeductStock(ctx, tx, n.ProductID, n.Quantity); err != nil {
				return fmt.Errorf("deduct stock %s: %w", n.ProductID, err)
			}
		}
		if err := w.orders.UpdateStatus(ctx, tx, orderID, model.OrderStatusConfirmed); err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		metrics.OrdersTotal.WithLabelValues("confirmed").Inc()
		w.log.Info("order confirmed", zap.String("order_id", orderID))
		return nil
	}

	return nil
}

// failOrder finalizes an order whose payment was declined.
func (w *InventoryWorker) failOrder(ctx context.Context, orderID string) error {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	o, err := w.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}
	if o == nil {
		return permanent(fmt.Errorf("order %s not found", orderID))
	}
	if o.Status != model.OrderStatusPendingPayment {
		return nil
	}

	if err := w.orders.UpdateStatus(ctx, tx, orderID, model.OrderStatusPaymentFailed); err != nil {
		return fmt.Errorf("fail order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.OrdersTotal.WithLabelValues("payment_failed").Inc()
	w.log.Info("order marked payment failed", zap.String("order_id", orderID))
	return nil
}

// settleDecision is the outcome of the stock settlement check.
type settleDecision int

const (
	settleSkip    settleDecision = iota // order already settled, no-op
	settleCancel                        // at least one product falls short
	settleConfirm                       // every product covers its need
)

// decideSettlement is the pure core of confirmOrder: given the locked order
// status, the folded per-product needs and the locked stock levels, it picks
// the outcome. Deduction is all-or-nothing; a single shortfall cancels the
// whole order.
func decideSettlement(status model.OrderStatus, needs []deduction, stock map[string]int) settleDecision {
	if status != model.OrderStatusPendingPayment {
		return settleSkip
	}
	for _, n := range needs {
		if stock[n.ProductID] < n.Quantity {
			return settleCancel
		}
	}
	return settleConfirm
}

// deduction is the per-product quantity an order needs.
type deduction struct {
	ProductID string
	Quantity  int
}

// planDeduction folds duplicate product lines together and returns the needs
// sorted by product id ascending, the canonical lock order.
func planDeduction(items []model.OrderItem) []deduction {
	byProduct := make(map[string]int, len(items))
	for _, it := range items {
		byProduct[it.ProductID] += it.Quantity
	}

	needs := make([]deduction, 0, len(byProduct))
	for id, qty := range byProduct {
		needs = append(needs, deduction{ProductID: id, Quantity: qty})
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].ProductID < needs[j].ProductID })
	return needs
}
