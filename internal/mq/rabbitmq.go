package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes ledger events to durable queues.
type RabbitMQClient struct {
	conn *amqp.Connection

	// amqp channels are not safe for concurrent publishes.
	mu      sync.Mutex
	channel *amqp.Channel

	durable    bool
	autoDelete bool
	prefetch   int

	declared sync.Map
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:       conn,
		channel:    ch,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
		prefetch:   cfg.PrefetchCount,
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(queue) == "" {
		return "", errors.New("rabbitmq queue is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declare(r.channel, queue); err != nil {
		return "", err
	}

	headers := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		headers[k] = v
	}
	id := uuid.NewString()
	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}
	err := r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe consumes on a dedicated channel so publishes are not blocked.
func (r *RabbitMQClient) Subscribe(ctx context.Context, queue string, handler Handler) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("rabbitmq queue is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return err
		}
	}
	if err := r.declare(ch, queue); err != nil {
		return err
	}

	tag := "lumen-" + uuid.NewString()
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{ID: d.MessageId, Data: d.Body, Attributes: tableToAttrs(d.Headers)}
			if err := handler(ctx, msg); err != nil {
				// Redelivered messages that fail again are dropped.
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declare(ch *amqp.Channel, queue string) error {
	if _, ok := r.declared.Load(queue); ok {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, r.durable, r.autoDelete, false, false, nil); err != nil {
		return err
	}
	r.declared.Store(queue, struct{}{})
	return nil
}

func tableToAttrs(headers amqp.Table) map[string]string {
	attrs := make(map[string]string, len(headers))
	for k, v := range headers {
		switch typed := v.(type) {
		case string:
			attrs[k] = typed
		case []byte:
			attrs[k] = string(typed)
		default:
			attrs[k] = fmt.Sprint(v)
		}
	}
	return attrs
}
