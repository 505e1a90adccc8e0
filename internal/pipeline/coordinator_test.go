package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/triage-ai/netwarden/internal/alert"
	"github.com/triage-ai/netwarden/internal/storage"
	"go.uber.org/zap"
)

type fakeEnricher struct {
	delay time.Duration
}

func (f *fakeEnricher) Enrich(_ context.Context, a alert.ConnectionAlert) alert.ConnectionAlert {
	time.Sleep(f.delay)
	return a.WithEnrichment(alert.Enrichment{Whois: "OrgName: Example", Geo: "US"})
}

type fakeClassifier struct{}

func (f *fakeClassifier) Classify(_ context.Context, a alert.ConnectionAlert) alert.AnalysisResult {
	r := alert.NewAnalysisResult(a.ID)
	r.Recommendation = alert.RecommendationAllow
	r.Confidence = 0.8
	r.Summary = "ok"
	return r
}

type recordingSink struct {
	mu        sync.Mutex
	detected  []alert.ConnectionAlert
	completed []alert.AnalysisResult
}

func (s *recordingSink) AlertDetected(_ context.Context, a alert.ConnectionAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected = append(s.detected, a)
	return nil
}

func (s *recordingSink) AnalysisCompleted(_ context.Context, r alert.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, r)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detected), len(s.completed)
}

type recordingWriter struct {
	mu     sync.Mutex
	events []*storage.PipelineEvent
}

func (w *recordingWriter) Write(e *storage.PipelineEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
}

func (w *recordingWriter) Close() {}

func (w *recordingWriter) stages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, e := range w.events {
		out = append(out, e.Stage)
	}
	return out
}

func newAlert(ip string) alert.ConnectionAlert {
	a := alert.New()
	a.IPAddress = ip
	return a
}

func TestCoordinator_EmitsBothEventsOncePerAlert(t *testing.T) {
	alerts := make(chan alert.ConnectionAlert, 4)
	sink := &recordingSink{}
	writer := &recordingWriter{}

	c := New(alerts, nil, &fakeEnricher{}, &fakeClassifier{}, sink, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	a := newAlert("93.184.216.34")
	alerts <- a

	waitFor(t, func() bool {
		d, comp := sink.counts()
		return d == 1 && comp == 1
	})

	cancel()
	<-done

	if sink.detected[0].ID != a.ID {
		t.Errorf("detected alert id = %q, want %q", sink.detected[0].ID, a.ID)
	}
	if sink.completed[0].AlertID != a.ID {
		t.Errorf("completed alert id = %q, want %q", sink.completed[0].AlertID, a.ID)
	}
	if sink.completed[0].Recommendation != alert.RecommendationAllow {
		t.Errorf("recommendation = %v", sink.completed[0].Recommendation)
	}

	stages := writer.stages()
	if len(stages) != 2 || stages[0] != storage.StageAlertDetected || stages[1] != storage.StageAnalysisCompleted {
		t.Errorf("audit stages = %v", stages)
	}
}

func TestCoordinator_SupersededAlertStillCompletes(t *testing.T) {
	alerts := make(chan alert.ConnectionAlert, 4)
	sink := &recordingSink{}
	writer := &recordingWriter{}

	// Slow enrichment so the second alert arrives while the first is
	// still in flight.
	c := New(alerts, nil, &fakeEnricher{delay: 50 * time.Millisecond}, &fakeClassifier{}, sink, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	alerts <- newAlert("93.184.216.34")
	alerts <- newAlert("151.101.1.69")

	waitFor(t, func() bool {
		d, comp := sink.counts()
		return d == 2 && comp == 2
	})

	cancel()
	<-done
}

func TestCoordinator_EnrichmentFlowsIntoClassification(t *testing.T) {
	alerts := make(chan alert.ConnectionAlert, 1)
	sink := &recordingSink{}
	writer := &recordingWriter{}

	c := New(alerts, nil, &fakeEnricher{}, &fakeClassifier{}, sink, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	alerts <- newAlert("93.184.216.34")

	waitFor(t, func() bool {
		_, comp := sink.counts()
		return comp == 1
	})

	cancel()
	<-done

	// The analysis audit row must carry the enriched alert's facts.
	writer.mu.Lock()
	defer writer.mu.Unlock()
	var analysisRow *storage.PipelineEvent
	for _, e := range writer.events {
		if e.Stage == storage.StageAnalysisCompleted {
			analysisRow = e
		}
	}
	if analysisRow == nil {
		t.Fatal("no analysis audit row")
	}
	if analysisRow.Recommendation != "allow" {
		t.Errorf("recommendation = %q", analysisRow.Recommendation)
	}
}

func TestCoordinator_RunDrainsInFlightOnCancel(t *testing.T) {
	alerts := make(chan alert.ConnectionAlert, 1)
	sink := &recordingSink{}
	writer := &recordingWriter{}

	c := New(alerts, nil, &fakeEnricher{delay: 50 * time.Millisecond}, &fakeClassifier{}, sink, writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	alerts <- newAlert("93.184.216.34")

	// Cancel while enrichment is still sleeping; Run must not return until
	// the in-flight pipeline has emitted its completion.
	waitFor(t, func() bool {
		d, _ := sink.counts()
		return d == 1
	})
	cancel()
	<-done

	_, comp := sink.counts()
	if comp != 1 {
		t.Fatalf("completed = %d, shutdown must wait for in-flight alerts", comp)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
