package storage

import "time"

// EventWriter persists pipeline audit events. Write() must NEVER block the
// caller — the poll loop and coordinator run on tight turns.
type EventWriter interface {
	Write(event *PipelineEvent)
	Close()
}

// Pipeline stages recorded in the audit trail.
const (
	StageAlertDetected     = "alert_detected"
	StageAnalysisCompleted = "analysis_completed"
)

// PipelineEvent is one audit row: either an accepted alert or its terminal
// analysis outcome.
type PipelineEvent struct {
	EventID        string
	AlertID        string
	Timestamp      time.Time
	Stage          string
	ProcessName    string
	ProcessPath    string
	IPAddress      string
	Port           string
	Protocol       string
	Hostname       string
	Recommendation string
	Confidence     float64
	Summary        string
	FragmentCount  uint32
	LatencyMs      float32
}
