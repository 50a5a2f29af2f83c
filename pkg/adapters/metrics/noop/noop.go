// Package noop provides a metrics collector that discards everything.
package noop

import "time"

// Collector implements ports.MetricsCollector without recording anything.
type Collector struct{}

// New returns a no-op collector.
func New() Collector { return Collector{} }

func (Collector) RecordRunStarted()                                {}
func (Collector) RecordRunCompleted(string, time.Duration)         {}
func (Collector) RecordNodeExecuted(string, string, time.Duration) {}
func (Collector) RecordPublishFailure(string)                      {}
func (Collector) IncActiveRuns()                                   {}
func (Collector) DecActiveRuns()                                   {}
func (Collector) RecordWorkerPoolStatus(idle, busy, stopped int)   {}
func (Collector) SetOverflowJobs(int)                              {}
