// Package mq publishes inventory events to a message broker. The backend is
// selected from configuration; the server runs fine with none configured.
package mq

import (
	"context"
	"fmt"

	"github.com/sweetshop/apiserver/config"
)

// Backend defines the broker-agnostic publish operation used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Open builds the configured broker backend. An empty backend name returns
// (nil, nil), which callers treat as "events disabled".
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
