package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	// pending may only move to a terminal status
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusConfirmed))
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusPaymentFailed))

	// terminal statuses never move again
	for _, from := range []OrderStatus{OrderStatusConfirmed, OrderStatusCancelled, OrderStatusPaymentFailed} {
		for _, to := range []OrderStatus{OrderStatusPendingPayment, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusPaymentFailed} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s should be blocked", from, to)
		}
	}

	// nothing transitions back to pending or to garbage
	assert.False(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusPendingPayment))
	assert.False(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatus("SHIPPED")))
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderStatusPendingPayment.Valid())
	assert.True(t, OrderStatusConfirmed.Valid())
	assert.False(t, OrderStatus("").Valid())
	assert.False(t, OrderStatus("UNKNOWN").Valid())
}
