package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumenbank/apiserver/config"
)

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"
	DriverPubSub   = "pubsub"
)

// Message is a delivered event, independent of the broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Event returns the "event" attribute.
func (m Message) Event() string {
	return m.Attributes["event"]
}

// Handler processes one message. A non-nil error requeues it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker client.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the broker handle used by the ledger and the notification worker.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.Driver. It returns nil, nil
// when events are disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client), nil
	case DriverPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unsupported MQ_DRIVER %q", cfg.Driver)
	}
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v and publishes it with the given event attribute.
func (m *MQ) PublishJSON(ctx context.Context, channel, event string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, channel, data, map[string]string{"event": event})
}

// Subscribe blocks delivering messages from channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
