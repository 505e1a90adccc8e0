package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/triage-ai/netwarden/internal/alert"
	"github.com/triage-ai/netwarden/internal/extract"
	"github.com/triage-ai/netwarden/internal/metrics"
	"github.com/triage-ai/netwarden/internal/uitree"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	alertBufferSize     = 16
)

// Config holds the watcher's polling parameters.
type Config struct {
	App          uitree.AppMatch
	TitleMarker  string        // substring marking an alert window's title
	PollInterval time.Duration // defaults to 500ms
}

// Watcher polls the firewall's windows, extracts alert drafts, and pushes
// accepted alerts onto a bounded channel consumed by the coordinator.
// Window lookup and flattening are synchronous and run on the ticker's turn.
type Watcher struct {
	provider  uitree.WindowProvider
	extractor *extract.Extractor
	cfg       Config
	logger    *zap.Logger

	alerts chan alert.ConnectionAlert

	mu     sync.Mutex
	lastIP string // de-dup marker: IP of the most recently emitted alert
}

// New creates a watcher. The alert channel is buffered; if the coordinator
// falls behind the newest alert is dropped with a warning rather than
// blocking the poll loop.
func New(provider uitree.WindowProvider, extractor *extract.Extractor, cfg Config, logger *zap.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Watcher{
		provider:  provider,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		alerts:    make(chan alert.ConnectionAlert, alertBufferSize),
	}
}

// Alerts returns the channel of accepted, de-duplicated alerts.
func (w *Watcher) Alerts() <-chan alert.ConnectionAlert {
	return w.alerts
}

// Run polls until ctx is cancelled. It never returns a poll error — the
// watched process coming and going is normal — only ctx.Err() on shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	windows, err := w.provider.Windows(ctx, w.cfg.App)
	if err != nil {
		metrics.PollErrors.Inc()
		w.logger.Debug("window lookup failed", zap.Error(err))
		return
	}

	win, ok := w.findAlertWindow(windows)
	if !ok {
		return
	}

	fragments := uitree.Flatten(win.Root)
	draft := w.extractor.Extract(fragments)

	if !draft.Conclusive() {
		metrics.DraftsInconclusive.Inc()
		w.logger.Debug("inconclusive draft dropped",
			zap.Int("fragments", len(fragments)),
		)
		return
	}

	if !w.acceptIP(draft.IPAddress) {
		metrics.AlertsDeduplicated.Inc()
		return
	}

	select {
	case w.alerts <- draft:
		metrics.AlertsDetected.Inc()
		w.logger.Info("alert detected",
			zap.String("alert_id", draft.ID),
			zap.String("process", draft.ProcessName),
			zap.String("destination", draft.Destination()),
		)
	default:
		// The marker is claimed only on emission; release it so the still
		// open dialog is retried on the next tick.
		w.releaseIP(draft.IPAddress)
		w.logger.Warn("alert buffer full, dropping alert",
			zap.String("alert_id", draft.ID),
		)
	}
}

// findAlertWindow returns the first window whose title contains the marker.
func (w *Watcher) findAlertWindow(windows []uitree.Window) (uitree.Window, bool) {
	for _, win := range windows {
		if strings.Contains(win.Title, w.cfg.TitleMarker) {
			return win, true
		}
	}
	return uitree.Window{}, false
}

// acceptIP atomically compares the draft's IP against the de-dup marker and
// claims it. An open, unchanged dialog re-polled every tick emits once.
func (w *Watcher) acceptIP(ip string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ip == w.lastIP {
		return false
	}
	w.lastIP = ip
	return true
}

// releaseIP undoes a claim whose alert was never emitted.
func (w *Watcher) releaseIP(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastIP == ip {
		w.lastIP = ""
	}
}
