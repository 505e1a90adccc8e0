package classify

import (
	"fmt"
	"strings"

	"github.com/triage-ai/netwarden/internal/alert"
)

// defaultKnownSafe are destination patterns the prompt flags as commonly
// benign so the classifier doesn't cry wolf on everyday traffic.
var defaultKnownSafe = []string{
	"*.apple.com, *.icloud.com (OS services, push, updates)",
	"*.google.com, *.gstatic.com, *.googleapis.com",
	"*.amazonaws.com, *.cloudfront.net (hosting for countless services)",
	"*.akamai.net, *.akamaiedge.net, *.fastly.net (CDNs)",
	"*.slack.com, *.zoom.us, *.microsoft.com, *.office.com",
	"*.github.com, *.githubusercontent.com",
}

// defaultSuspicion are heuristics the prompt asks the classifier to weigh.
var defaultSuspicion = []string{
	"process running from /tmp, /var, or a hidden directory",
	"unsigned or oddly named binary imitating a system process",
	"direct-to-IP connections with no reverse DNS on unusual ports",
	"known remote-access or exfiltration ports (e.g. 4444, 5554, 6667)",
	"destination country mismatched with the software vendor",
	"shell interpreters or scripting runtimes making network connections",
}

// thinFieldThreshold: below this many populated structured fields the
// prompt falls back to the raw fragments, which may hold what the
// heuristic extractor missed.
const thinFieldThreshold = 3

// PromptConfig overrides the built-in known-safe and suspicion lists.
type PromptConfig struct {
	KnownSafe []string
	Suspicion []string
}

// BuildPrompt renders the instructional template for one alert.
func BuildPrompt(a alert.ConnectionAlert, cfg PromptConfig) string {
	knownSafe := cfg.KnownSafe
	if len(knownSafe) == 0 {
		knownSafe = defaultKnownSafe
	}
	suspicion := cfg.Suspicion
	if len(suspicion) == 0 {
		suspicion = defaultSuspicion
	}

	var b strings.Builder
	b.WriteString("You are a network security analyst. A desktop firewall intercepted an outbound connection attempt and needs a judgment.\n\n")

	b.WriteString("Connection facts:\n")
	structured := writeFacts(&b, a)

	if structured < thinFieldThreshold && len(a.RawFragments) > 0 {
		b.WriteString("\nThe structured fields are incomplete. Raw text captured from the alert dialog, in order:\n")
		for _, frag := range a.RawFragments {
			fmt.Fprintf(&b, "  - %s\n", frag)
		}
	}

	if a.WhoisSummary != "" {
		b.WriteString("\nRegistration (whois):\n" + indent(a.WhoisSummary) + "\n")
	}
	if a.GeoSummary != "" {
		b.WriteString("\nGeolocation: " + a.GeoSummary + "\n")
	}
	if a.ThreatIntel != "" {
		b.WriteString("\nThreat intel: " + a.ThreatIntel + "\n")
	}

	b.WriteString("\nCommonly legitimate destinations:\n")
	for _, s := range knownSafe {
		fmt.Fprintf(&b, "  - %s\n", s)
	}

	b.WriteString("\nTreat as suspicious:\n")
	for _, s := range suspicion {
		fmt.Fprintf(&b, "  - %s\n", s)
	}

	b.WriteString(`
Respond with a single JSON object, no markdown fences, exactly this shape:
{"recommendation": "ALLOW"|"BLOCK"|"CAUTION", "confidence": <number 0..1>, "known_service": <string or null>, "summary": <one sentence>, "details": <short paragraph>, "risks": [<short strings>]}
`)

	return b.String()
}

// writeFacts prints the populated structured fields and returns how many
// there were.
func writeFacts(b *strings.Builder, a alert.ConnectionAlert) int {
	count := 0
	write := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(b, "  %s: %s\n", label, value)
		count++
	}
	write("Process", a.ProcessName)
	write("Path", a.ProcessPath)
	write("PID", a.ProcessID)
	write("Arguments", a.ProcessArgs)
	write("IP address", a.IPAddress)
	write("Port", a.Port)
	write("Protocol", a.Protocol)
	write("Hostname", a.Hostname)
	return count
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
