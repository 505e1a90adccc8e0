package alert

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionAlert is one outbound-connection prompt harvested from the
// firewall's alert dialog. Structured fields are best-effort — the dialog
// does not label its text consistently across versions — so RawFragments
// always carries the original ordered text for downstream consumers.
type ConnectionAlert struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Process facts
	ProcessName string `json:"process_name,omitempty"`
	ProcessPath string `json:"process_path,omitempty"`
	ProcessID   string `json:"process_id,omitempty"`
	ProcessArgs string `json:"process_args,omitempty"`

	// Connection facts
	IPAddress string `json:"ip_address,omitempty"`
	Port      string `json:"port,omitempty"`
	Protocol  string `json:"protocol,omitempty"` // "TCP" or "UDP"
	Hostname  string `json:"hostname,omitempty"` // reverse DNS

	// Enrichment facts — empty until the enricher has run.
	WhoisSummary string `json:"whois_summary,omitempty"`
	GeoSummary   string `json:"geo_summary,omitempty"`
	ThreatIntel  string `json:"threat_intel,omitempty"`

	// Ordered text fragments from the dialog, exact duplicates removed.
	RawFragments []string `json:"raw_fragments,omitempty"`
}

// New returns an alert with a fresh id and timestamp.
func New() ConnectionAlert {
	return ConnectionAlert{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
}

// Conclusive reports whether the alert carries enough signal to process.
// An alert without an IP address is dropped by the watcher, never emitted.
func (a ConnectionAlert) Conclusive() bool {
	return a.IPAddress != ""
}

// Enrichment holds the outcome of the concurrent lookup stage. Empty fields
// mean that lookup failed or was skipped; they never abort the others.
type Enrichment struct {
	Whois    string
	Geo      string
	Hostname string
}

// WithEnrichment returns a copy of the alert with lookup results applied.
// The receiver is never mutated — the view layer may already be rendering
// the original value under the same id.
func (a ConnectionAlert) WithEnrichment(e Enrichment) ConnectionAlert {
	out := a
	if e.Whois != "" {
		out.WhoisSummary = e.Whois
	}
	if e.Geo != "" {
		out.GeoSummary = e.Geo
	}
	if e.Hostname != "" && out.Hostname == "" {
		out.Hostname = e.Hostname
	}
	return out
}

// Destination renders the connection endpoint for logs and prompts.
func (a ConnectionAlert) Destination() string {
	dest := a.IPAddress
	if a.Port != "" {
		dest += ":" + a.Port
	}
	return dest
}
