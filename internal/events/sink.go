package events

import (
	"context"

	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

// Sink receives pipeline events for the presentation layer. Exactly one
// coordinator produces into a sink; fan-out happens behind Multi, never
// through an ambient broadcast mechanism.
type Sink interface {
	AlertDetected(ctx context.Context, a alert.ConnectionAlert) error
	AnalysisCompleted(ctx context.Context, r alert.AnalysisResult) error
}

// LogSink is the fallback sink for local runs without a bus.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs events as structured JSON.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) AlertDetected(_ context.Context, a alert.ConnectionAlert) error {
	s.logger.Info("alert_detected",
		zap.String("alert_id", a.ID),
		zap.String("process", a.ProcessName),
		zap.String("path", a.ProcessPath),
		zap.String("destination", a.Destination()),
		zap.String("hostname", a.Hostname),
	)
	return nil
}

func (s *LogSink) AnalysisCompleted(_ context.Context, r alert.AnalysisResult) error {
	s.logger.Info("analysis_completed",
		zap.String("alert_id", r.AlertID),
		zap.String("recommendation", r.Recommendation.String()),
		zap.Float64("confidence", r.Confidence),
		zap.String("summary", r.Summary),
		zap.Strings("risks", r.Risks),
	)
	return nil
}

// multiSink fans one event out to several sinks; the first error wins but
// every sink still sees the event.
type multiSink struct {
	sinks []Sink
}

// Multi combines sinks. A single sink is returned unwrapped.
func Multi(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &multiSink{sinks: sinks}
}

func (m *multiSink) AlertDetected(ctx context.Context, a alert.ConnectionAlert) error {
	var first error
	for _, s := range m.sinks {
		if err := s.AlertDetected(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *multiSink) AnalysisCompleted(ctx context.Context, r alert.AnalysisResult) error {
	var first error
	for _, s := range m.sinks {
		if err := s.AnalysisCompleted(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
