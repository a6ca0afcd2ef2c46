// Package audit delivers workflow transition events to downstream consumers.
// Delivery is best-effort: the engine never fails a state change because a
// sink did.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/pitabwire/greenlight/model"
)

// Sink receives a copy of every accepted workflow transition.
type Sink interface {
	Record(ctx context.Context, event model.AuditEvent) error
}

// LoggerSink writes audit events to the structured log. It is the default
// sink and doubles as the notification hook in deployments without a
// dedicated consumer.
type LoggerSink struct {
	logger *zap.Logger
}

// NewLoggerSink creates a Sink that logs every event.
func NewLoggerSink(logger *zap.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Record logs the event.
func (s *LoggerSink) Record(_ context.Context, event model.AuditEvent) error {
	s.logger.Info("workflow audit event",
		zap.String("event", event.Event),
		zap.String("workflow_id", event.WorkflowID),
		zap.String("tenant_id", event.TenantID),
		zap.String("step_id", event.StepID),
		zap.String("actor_id", event.ActorID),
		zap.String("action", string(event.Action)),
		zap.String("before_status", event.BeforeStatus),
		zap.String("after_status", event.AfterStatus),
	)
	return nil
}

// MultiSink fans an event out to several sinks. Errors are collected but the
// first one wins; remaining sinks still receive the event.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a Sink delivering to all given sinks in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record delivers the event to every sink.
func (s *MultiSink) Record(ctx context.Context, event model.AuditEvent) error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopSink discards every event. For tests.
type NopSink struct{}

// Record discards the event.
func (NopSink) Record(context.Context, model.AuditEvent) error { return nil }
