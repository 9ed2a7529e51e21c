package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

func TestCreateRejectsEmptyItems(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "client-1", nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Create(context.Background(), "client-1", []model.OrderItemRequest{})
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "client-1", []model.OrderItemRequest{
		{ProductID: "p1", Quantity: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), "client-1", []model.OrderItemRequest{
		{ProductID: "p1", Quantity: -3},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestProductNotFoundErrorMessage(t *testing.T) {
	err := &ProductNotFoundError{ProductID: "p42"}
	assert.Equal(t, "product p42 not found", err.Error())
}

func TestCreateWritesOrderItemsAndOutboxAtomically(t *testing.T) {
	// Needs a real MySQL: the point is that orders, order_items and the
	// ORDER_CREATED outbox row commit or roll back together.
	t.Skip("Integration test - requires database")
}
