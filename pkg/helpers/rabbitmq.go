package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrQueueClosed = errors.New("rabbitmq queue is closed")

// RabbitQueue is one AMQP connection and channel bound to a durable queue on
// the default exchange. The API publishes email jobs through it and the email
// worker consumes them.
type RabbitQueue struct {
	Name string

	mu   sync.Mutex // amqp channels are not safe for concurrent publishing
	conn *amqp.Connection
	ch   *amqp.Channel
}

func OpenRabbitQueue(url, name string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitQueue{Name: name, conn: conn, ch: ch}, nil
}

// PublishJSON enqueues body as a persistent JSON message.
func (q *RabbitQueue) PublishJSON(ctx context.Context, body any) error {
	if q == nil {
		return ErrQueueClosed
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch == nil || q.ch.IsClosed() {
		return ErrQueueClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return q.ch.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
}

// Consume starts a manual-ack consumer that holds at most prefetch unacked deliveries.
func (q *RabbitQueue) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch == nil || q.ch.IsClosed() {
		return nil, ErrQueueClosed
	}
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return q.ch.Consume(q.Name, "", false, false, false, false, nil)
}

func (q *RabbitQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}
