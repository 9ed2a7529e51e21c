package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/payment"
	"github.com/jmehdipour/order-pipeline/internal/rabbit"
)

// PaymentWorker consumes ORDER_CREATED events, settles the payment through
// the decider and publishes the outcome event.
//
// The outcome is published BEFORE the delivery is acked. If the process dies
// in between, the broker redelivers ORDER_CREATED and a duplicate outcome may
// go out; the inventory worker's status gate absorbs that. Malformed or
// unpublishable messages are rejected without requeue so the queue's
// dead-letter binding picks them up.
type PaymentWorker struct {
	conn    *rabbit.Conn
	decider payment.Decider
	log     *zap.Logger
}

func NewPaymentWorker(conn *rabbit.Conn, decider payment.Decider, log *zap.Logger) *PaymentWorker {
	return &PaymentWorker{conn: conn, decider: decider, log: log}
}

// Run declares the queue topology and consumes until ctx is canceled.
func (w *PaymentWorker) Run(ctx context.Context) error {
	err := w.conn.DeclareQueue(rabbit.QueueSpec{
		Name:          rabbit.QueueOrderCreated,
		BindingKey:    model.EventOrderCreated,
		DeadLetterKey: rabbit.QueueOrderCreated + ".dlq",
	})
	if err != nil {
		return err
	}

	msgs, err := w.conn.Consume(rabbit.QueueOrderCreated, 1)
	if err != nil {
		return err
	}

	w.log.Info("payment worker started", zap.String("queue", rabbit.QueueOrderCreated))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("payment worker stopped")
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consume channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *PaymentWorker) handle(ctx context.Context, d amqp.Delivery) {
	var ev model.OrderCreatedPayload
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		w.log.Error("malformed order created event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	ok, err := w.decider.Decide(ctx, ev.OrderID)
	if err != nil {
		// Decide only fails on ctx cancellation; requeue so the order is
		// settled after restart.
		_ = d.Nack(false, true)
		return
	}

	eventType := model.EventPaymentFailed
	result := "failed"
	if ok {
		eventType = model.EventPaymentConfirmed
		result = "confirmed"
	}

	body, err := json.Marshal(model.PaymentOutcomePayload{OrderID: ev.OrderID})
	if err != nil {
		w.log.Error("marshal payment outcome", zap.String("order_id", ev.OrderID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := w.conn.Publish(ctx, d.MessageId, eventType, body); err != nil {
		w.log.Error("publish payment outcome",
			zap.String("order_id", ev.OrderID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}

	metrics.PaymentOutcomesTotal.WithLabelValues(result).Inc()
	w.log.Info("payment settled",
		zap.String("order_id", ev.OrderID),
		zap.String("event_type", eventType),
	)
	_ = d.Ack(false)
}
