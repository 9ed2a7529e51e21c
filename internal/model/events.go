package model

// Routing keys on the events topic exchange.
const (
	EventOrderCreated     = "ORDER_CREATED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentFailed    = "PAYMENT_FAILED"
)

// OrderItemRequest is an item pair as submitted by the caller and as carried
// inside the ORDER_CREATED payload.
type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderCreatedPayload is the body of an ORDER_CREATED outbox event.
type OrderCreatedPayload struct {
	OrderID  string             `json:"orderId"`
	ClientID string             `json:"clientId"`
	Items    []OrderItemRequest `json:"items"`
}

// PaymentOutcomePayload is the body of both terminal payment events.
type PaymentOutcomePayload struct {
	OrderID string `json:"orderId"`
}
