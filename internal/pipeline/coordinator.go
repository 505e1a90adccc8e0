package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/triage-ai/netwarden/internal/alert"
	"github.com/triage-ai/netwarden/internal/events"
	"github.com/triage-ai/netwarden/internal/storage"
	"go.uber.org/zap"
)

// Enricher augments an accepted alert with network metadata.
type Enricher interface {
	Enrich(ctx context.Context, a alert.ConnectionAlert) alert.ConnectionAlert
}

// Classifier produces the terminal analysis for an alert. Implementations
// never fail — every outcome is a displayable result.
type Classifier interface {
	Classify(ctx context.Context, a alert.ConnectionAlert) alert.AnalysisResult
}

// Inspector backfills process facts from the local process table.
type Inspector interface {
	Backfill(ctx context.Context, a alert.ConnectionAlert) alert.ConnectionAlert
}

// Coordinator is the single consumer of the watcher's alert channel. It
// runs each alert through enrichment then classification, emits exactly
// one AlertDetected and one AnalysisCompleted per alert, and records both
// in the audit trail. A newly accepted alert supersedes interest in the
// previous one: in-flight stages finish in the background and their
// completion is flagged stale rather than cancelled.
type Coordinator struct {
	alerts     <-chan alert.ConnectionAlert
	inspector  Inspector
	enricher   Enricher
	classifier Classifier
	sink       events.Sink
	writer     storage.EventWriter
	logger     *zap.Logger

	mu       sync.Mutex
	latestID string

	wg sync.WaitGroup
}

// New creates a coordinator. inspector may be nil to skip backfill.
func New(
	alerts <-chan alert.ConnectionAlert,
	inspector Inspector,
	enricher Enricher,
	classifier Classifier,
	sink events.Sink,
	writer storage.EventWriter,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		alerts:     alerts,
		inspector:  inspector,
		enricher:   enricher,
		classifier: classifier,
		sink:       sink,
		writer:     writer,
		logger:     logger,
	}
}

// Run consumes alerts until ctx is cancelled, then waits for in-flight
// pipelines to finish.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return ctx.Err()
		case a := <-c.alerts:
			c.accept(ctx, a)
		}
	}
}

// accept emits the detection event synchronously (events stay in arrival
// order) and processes the rest of the pipeline in its own goroutine so a
// fresh alert is never blocked behind a slow lookup.
func (c *Coordinator) accept(ctx context.Context, a alert.ConnectionAlert) {
	c.mu.Lock()
	c.latestID = a.ID
	c.mu.Unlock()

	if err := c.sink.AlertDetected(ctx, a); err != nil {
		c.logger.Warn("alert event delivery failed",
			zap.String("alert_id", a.ID),
			zap.Error(err),
		)
	}
	c.writer.Write(&storage.PipelineEvent{
		EventID:       uuid.New().String(),
		AlertID:       a.ID,
		Timestamp:     time.Now().UTC(),
		Stage:         storage.StageAlertDetected,
		ProcessName:   a.ProcessName,
		ProcessPath:   a.ProcessPath,
		IPAddress:     a.IPAddress,
		Port:          a.Port,
		Protocol:      a.Protocol,
		Hostname:      a.Hostname,
		FragmentCount: uint32(len(a.RawFragments)),
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.process(ctx, a)
	}()
}

func (c *Coordinator) process(ctx context.Context, a alert.ConnectionAlert) {
	start := time.Now()

	if c.inspector != nil {
		a = c.inspector.Backfill(ctx, a)
	}

	// Enrichment and classification are sequential stages per alert; the
	// enricher parallelizes internally.
	enriched := c.enricher.Enrich(ctx, a)
	result := c.classifier.Classify(ctx, enriched)

	if !c.isLatest(a.ID) {
		// Superseded: the result is still emitted (exactly once per
		// alert), the presentation layer shows only the latest.
		c.logger.Debug("analysis for superseded alert",
			zap.String("alert_id", a.ID),
		)
	}

	if err := c.sink.AnalysisCompleted(ctx, result); err != nil {
		c.logger.Warn("analysis event delivery failed",
			zap.String("alert_id", a.ID),
			zap.Error(err),
		)
	}

	c.writer.Write(&storage.PipelineEvent{
		EventID:        uuid.New().String(),
		AlertID:        a.ID,
		Timestamp:      time.Now().UTC(),
		Stage:          storage.StageAnalysisCompleted,
		ProcessName:    enriched.ProcessName,
		ProcessPath:    enriched.ProcessPath,
		IPAddress:      enriched.IPAddress,
		Port:           enriched.Port,
		Protocol:       enriched.Protocol,
		Hostname:       enriched.Hostname,
		Recommendation: result.Recommendation.String(),
		Confidence:     result.Confidence,
		Summary:        result.Summary,
		FragmentCount:  uint32(len(enriched.RawFragments)),
		LatencyMs:      float32(float64(time.Since(start)) / float64(time.Millisecond)),
	})
}

func (c *Coordinator) isLatest(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestID == id
}
