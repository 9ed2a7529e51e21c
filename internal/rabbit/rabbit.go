package rabbit

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names bound to the events topic exchange.
const (
	QueueOrderCreated     = "order_created"
	QueuePaymentConfirmed = "payment_confirmed"
	QueuePaymentFailed    = "payment_failed"
)

// Conn owns one AMQP connection and one channel for the lifetime of a
// process. It is acquired once at command startup and passed explicitly to
// every component that publishes or consumes.
type Conn struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to the broker and asserts the durable topic exchange.
// Connection is retried because the broker takes time to start in Docker.
func Dial(url, exchange string) (*Conn, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 10; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("rabbitmq not ready, retrying in 2s... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Conn{conn: conn, ch: ch, exchange: exchange}, nil
}

func (c *Conn) Close() {
	_ = c.ch.Close()
	_ = c.conn.Close()
}

// Publish sends a persistent JSON message to the topic exchange using the
// event type as routing key.
func (c *Conn) Publish(ctx context.Context, id, routingKey string, body []byte) error {
	err := c.ch.PublishWithContext(ctx,
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			MessageId:    id,
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// QueueSpec declares a durable queue bound to the exchange by exact routing
// key. A non-empty DeadLetterKey routes rejected messages back through the
// same exchange under that key.
type QueueSpec struct {
	Name          string
	BindingKey    string
	DeadLetterKey string
}

func (c *Conn) DeclareQueue(spec QueueSpec) error {
	var args amqp.Table
	if spec.DeadLetterKey != "" {
		args = amqp.Table{
			"x-dead-letter-exchange":    c.exchange,
			"x-dead-letter-routing-key": spec.DeadLetterKey,
		}
	}

	if _, err := c.ch.QueueDeclare(
		spec.Name, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", spec.Name, err)
	}

	if err := c.ch.QueueBind(spec.Name, spec.BindingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", spec.Name, err)
	}
	return nil
}

// Consume starts delivering from the queue with manual acknowledgment.
// prefetch bounds unacked deliveries per channel; the workers run with
// prefetch 1 so each instance handles one message at a time.
func (c *Conn) Consume(queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := c.ch.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	msgs, err := c.ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack: we ack manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}
