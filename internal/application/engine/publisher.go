package engine

import (
	"context"
	"fmt"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"go.uber.org/zap"
)

// eventPublisher emits the run events. A missing publisher, a publish error
// or a panic inside the publisher is logged and otherwise ignored.
type eventPublisher struct {
	pub     ports.Publisher
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

func (p *eventPublisher) publish(ctx context.Context, topic string, payload any) {
	if p.pub == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.failed(topic, fmt.Errorf("publisher panic: %v", r))
		}
	}()
	if err := p.pub.Publish(ctx, topic, payload); err != nil {
		p.failed(topic, err)
	}
}

func (p *eventPublisher) failed(topic string, err error) {
	p.metrics.RecordPublishFailure(topic)
	p.logger.Warn("failed to publish run event",
		zap.String("topic", topic),
		zap.Error(err))
}

func (p *eventPublisher) status(ctx context.Context, run *domain.Run, terminal bool) {
	ev := domain.StatusEvent{Status: run.Status, RunID: run.ID}
	if terminal {
		d := run.Duration
		ev.Duration = &d
	}
	p.publish(ctx, ports.StatusTopic(run.ID), ev)
}

func (p *eventPublisher) log(ctx context.Context, runID string, entry domain.LogEntry) {
	p.publish(ctx, ports.LogTopic(runID), entry)
}

func (p *eventPublisher) failure(ctx context.Context, runID, message string) {
	p.publish(ctx, ports.ErrorTopic(runID), domain.ErrorEvent{Error: message})
}
