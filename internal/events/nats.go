package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

const (
	subjectAlertDetected     = "netwarden.alert.detected"
	subjectAnalysisCompleted = "netwarden.analysis.completed"
)

// NATSSink publishes pipeline events to the presentation layer's bus.
type NATSSink struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSSink connects to the bus with retry-on-reconnect semantics.
func NewNATSSink(url string, logger *zap.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("NewNATSSink: %w", err)
	}

	logger.Info("connected to event bus", zap.String("url", url))
	return &NATSSink{conn: conn, logger: logger}, nil
}

func (s *NATSSink) AlertDetected(_ context.Context, a alert.ConnectionAlert) error {
	return s.publish(subjectAlertDetected, a)
}

func (s *NATSSink) AnalysisCompleted(_ context.Context, r alert.AnalysisResult) error {
	return s.publish(subjectAnalysisCompleted, r)
}

func (s *NATSSink) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("NATSSink.publish: %w", err)
	}
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("NATSSink.publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
