package enrich

import (
	"context"
	"fmt"
	"strings"
)

// relevantWhoisKeys are the registry fields worth surfacing to the
// classifier. Lowercased prefixes matched against each output line.
var relevantWhoisKeys = []string{
	"orgname:",
	"org-name:",
	"organization:",
	"organisation:",
	"netname:",
	"country:",
	"city:",
	"descr:",
	"description:",
}

// maxWhoisLines caps the summary at the first matches in source order.
const maxWhoisLines = 5

// WhoisLookup resolves an IP's registration summary.
type WhoisLookup interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// CommandWhois runs the whois utility and filters its free-text output.
type CommandWhois struct {
	runner  Runner
	command string
}

// NewCommandWhois creates a whois lookup using the given binary name
// (usually just "whois").
func NewCommandWhois(runner Runner, command string) *CommandWhois {
	if command == "" {
		command = "whois"
	}
	return &CommandWhois{runner: runner, command: command}
}

func (w *CommandWhois) Lookup(ctx context.Context, ip string) (string, error) {
	out, err := w.runner.Run(ctx, w.command, ip)
	if err != nil {
		return "", fmt.Errorf("CommandWhois.Lookup: %w", err)
	}
	summary := FilterWhois(string(out))
	if summary == "" {
		return "", fmt.Errorf("CommandWhois.Lookup: no relevant fields for %s", ip)
	}
	return summary, nil
}

// FilterWhois reduces raw whois output to the relevant registry lines:
// key-matched lines only, de-duplicated by substring containment, capped at
// maxWhoisLines, kept in source order.
func FilterWhois(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !hasRelevantKey(line) {
			continue
		}
		if containsOrContained(kept, line) {
			continue
		}
		kept = append(kept, line)
		if len(kept) >= maxWhoisLines {
			break
		}
	}
	return strings.Join(kept, "\n")
}

func hasRelevantKey(line string) bool {
	lower := strings.ToLower(line)
	for _, key := range relevantWhoisKeys {
		if strings.HasPrefix(lower, key) {
			return true
		}
	}
	return false
}

// containsOrContained reports whether line duplicates any kept line in
// either direction — registries repeat the same value under several keys.
func containsOrContained(kept []string, line string) bool {
	for _, k := range kept {
		if strings.Contains(k, line) || strings.Contains(line, k) {
			return true
		}
	}
	return false
}
