// Package fanout publishes every event to several publishers.
package fanout

import (
	"context"
	"errors"

	"github.com/aescanero/dagrun/internal/ports"
)

// Publisher calls each target in order. A failing target does not stop the
// others; their errors are joined.
type Publisher struct {
	targets []ports.Publisher
}

// New creates a fan-out publisher. Nil targets are skipped.
func New(targets ...ports.Publisher) *Publisher {
	p := &Publisher{}
	for _, t := range targets {
		if t != nil {
			p.targets = append(p.targets, t)
		}
	}
	return p
}

// Publish implements ports.Publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	var errs []error
	for _, t := range p.targets {
		if err := t.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of targets.
func (p *Publisher) Len() int { return len(p.targets) }
