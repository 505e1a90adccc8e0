package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/triage-ai/netwarden/internal/alert"
	"github.com/triage-ai/netwarden/internal/metrics"
	"go.uber.org/zap"
)

// lookupTimeout bounds each individual lookup. Nothing upstream bounds the
// subprocess utilities or the geolocation endpoint, and one stuck lookup
// must not stall the stage.
const lookupTimeout = 10 * time.Second

// Enricher fans out the three network lookups for an accepted alert and
// merges whatever succeeded into a new alert value. A failed lookup leaves
// only its own field absent; it never aborts the siblings.
type Enricher struct {
	whois   WhoisLookup
	geo     GeoLookup
	rdns    RDNSLookup
	cache   Cache
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an enricher. cache may be nil to disable caching.
func New(whois WhoisLookup, geo GeoLookup, rdns RDNSLookup, cache Cache, logger *zap.Logger) *Enricher {
	return &Enricher{
		whois:   whois,
		geo:     geo,
		rdns:    rdns,
		cache:   cache,
		timeout: lookupTimeout,
		logger:  logger,
	}
}

// Enrich runs all lookups concurrently, waits for every one to finish, and
// returns a copy of the alert with the results applied. The input alert is
// never mutated. Reverse DNS is only attempted when the extractor left the
// hostname empty.
func (e *Enricher) Enrich(ctx context.Context, a alert.ConnectionAlert) alert.ConnectionAlert {
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, a.IPAddress); ok {
			metrics.EnrichmentCacheHits.Inc()
			return a.WithEnrichment(cached)
		}
	}

	var result alert.Enrichment
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		result.Whois = e.run(ctx, "whois", a.IPAddress, e.whois.Lookup)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		result.Geo = e.run(ctx, "geo", a.IPAddress, e.geo.Lookup)
	}()

	if a.Hostname == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Hostname = e.run(ctx, "rdns", a.IPAddress, e.rdns.Lookup)
		}()
	}

	wg.Wait()

	// An entirely empty round is a transient outage, not a fact about the
	// IP; caching it would suppress retries for as long as the entry lives.
	if e.cache != nil && result != (alert.Enrichment{}) {
		e.cache.Set(ctx, a.IPAddress, result)
	}

	return a.WithEnrichment(result)
}

// run executes one lookup under the per-lookup timeout. Failures are
// reported as an empty value plus a counter bump, nothing more.
func (e *Enricher) run(ctx context.Context, kind, ip string, lookup func(context.Context, string) (string, error)) string {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	value, err := lookup(ctx, ip)
	if err != nil {
		metrics.EnrichmentFailures.WithLabelValues(kind).Inc()
		e.logger.Debug("enrichment lookup failed",
			zap.String("lookup", kind),
			zap.String("ip", ip),
			zap.Error(err),
		)
		return ""
	}
	return value
}
