package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aescanero/dagrun/internal/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PubSubEventBus publishes run events on Redis Pub/Sub channels named after
// the run topics. Payloads travel as JSON; subscribers receive them as
// json.RawMessage.
type PubSubEventBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPubSubEventBus creates a new Redis Pub/Sub event bus
func NewPubSubEventBus(client *redis.Client, logger *zap.Logger) *PubSubEventBus {
	return &PubSubEventBus{
		client: client,
		logger: logger,
	}
}

// Publish publishes an event on the topic channel
func (e *PubSubEventBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := e.client.Publish(ctx, topic, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("topic", topic),
		zap.Int64("receivers", receivers))

	return nil
}

// Subscribe subscribes to the given topics until ctx is done
func (e *PubSubEventBus) Subscribe(ctx context.Context, topics ...string) (<-chan ports.Message, error) {
	ps := e.client.Subscribe(ctx, topics...)

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	e.logger.Debug("subscribed to run events", zap.Strings("topics", topics))

	out := make(chan ports.Message, 64)
	go e.forward(ctx, ps, out)
	return out, nil
}

// forward copies Pub/Sub messages to out until ctx is done
func (e *PubSubEventBus) forward(ctx context.Context, ps *redis.PubSub, out chan<- ports.Message) {
	defer close(out)
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m := ports.Message{Topic: msg.Channel, Payload: json.RawMessage(msg.Payload)}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close releases the underlying client
func (e *PubSubEventBus) Close() error {
	return e.client.Close()
}
