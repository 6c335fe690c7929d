// Package broker publishes saga notifications to RabbitMQ.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialAttempts  = 10
	dialRetryWait = 2 * time.Second
)

// RabbitMQPublisher publishes persistent messages to a durable queue.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQPublisher dials the broker, retrying while it starts up, and
// declares the durable queue.
func NewRabbitMQPublisher(url string, queueName string) (*RabbitMQPublisher, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		slog.Warn("failed to connect to RabbitMQ, retrying",
			"attempt", i+1, "max_attempts", dialAttempts, "error", err)
		time.Sleep(dialRetryWait)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, queue: queueName}, nil
}

// Publish sends one message to the queue with persistent delivery. The
// topic travels in the message type header so consumers can route on the
// terminal saga status.
func (p *RabbitMQPublisher) Publish(ctx context.Context, id string, topic string, payload []byte) error {
	err := p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			MessageId:    id,
			Type:         topic,
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message %s: %w", id, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() {
	p.channel.Close()
	p.conn.Close()
}
