package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters. Registered on the default registry and served from the
// admin endpoint's /metrics handler.
var (
	AlertsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_alerts_detected_total",
		Help: "Conclusive, de-duplicated alerts accepted into the pipeline.",
	})

	DraftsInconclusive = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_drafts_inconclusive_total",
		Help: "Extraction drafts dropped for lacking an IP address.",
	})

	AlertsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_alerts_deduplicated_total",
		Help: "Drafts dropped because the open dialog's IP was unchanged.",
	})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_poll_errors_total",
		Help: "Window provider failures during the poll loop.",
	})

	EnrichmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netwarden_enrichment_failures_total",
		Help: "Individual enrichment lookup failures by kind.",
	}, []string{"lookup"})

	EnrichmentCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_enrichment_cache_hits_total",
		Help: "Enrichment results served from cache.",
	})

	ClassifyAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_classify_attempts_total",
		Help: "Classification requests issued, one per credential tried.",
	})

	ClassifyFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_classify_failovers_total",
		Help: "Credential slots abandoned for the next slot in the pool.",
	})

	ClassifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_classify_failures_total",
		Help: "Classifications that exhausted the credential pool.",
	})
)
