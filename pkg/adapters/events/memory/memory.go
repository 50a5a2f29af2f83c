package memory

import (
	"context"
	"sync"

	"github.com/aescanero/dagrun/internal/ports"
)

const defaultBuffer = 256

type subscription struct {
	topics map[string]struct{}
	ch     chan ports.Message
}

// EventBus is an in-process publisher and subscriber. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type EventBus struct {
	subscribers map[*subscription]struct{}
	buffer      int
	mu          sync.RWMutex
}

// NewEventBus creates a new in-memory event bus. buffer is the channel
// capacity of each subscription; zero selects a default.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &EventBus{
		subscribers: make(map[*subscription]struct{}),
		buffer:      buffer,
	}
}

// Publish delivers an event to every subscription on the topic
func (e *EventBus) Publish(ctx context.Context, topic string, payload any) error {
	msg := ports.Message{Topic: topic, Payload: payload}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for sub := range e.subscribers {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving events on the given topics. The
// channel is closed once ctx is done.
func (e *EventBus) Subscribe(ctx context.Context, topics ...string) (<-chan ports.Message, error) {
	sub := &subscription{
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan ports.Message, e.buffer),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	e.mu.Lock()
	e.subscribers[sub] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(sub)
	}()
	return sub.ch, nil
}

// Subscribers returns the number of live subscriptions.
func (e *EventBus) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}

// Close drops every subscription and closes their channels.
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subscribers {
		delete(e.subscribers, sub)
		close(sub.ch)
	}
	return nil
}

func (e *EventBus) unsubscribe(sub *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subscribers[sub]; !ok {
		return
	}
	delete(e.subscribers, sub)
	close(sub.ch)
}
