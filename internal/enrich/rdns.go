package enrich

import (
	"context"
	"fmt"
	"strings"
)

// RDNSLookup resolves an IP back to a hostname.
type RDNSLookup interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// CommandRDNS runs the DNS utility in reverse mode ("dig +short -x <ip>")
// and takes the first PTR answer.
type CommandRDNS struct {
	runner  Runner
	command string
}

// NewCommandRDNS creates a reverse-DNS lookup using the given binary name
// (usually "dig").
func NewCommandRDNS(runner Runner, command string) *CommandRDNS {
	if command == "" {
		command = "dig"
	}
	return &CommandRDNS{runner: runner, command: command}
}

func (r *CommandRDNS) Lookup(ctx context.Context, ip string) (string, error) {
	out, err := r.runner.Run(ctx, r.command, "+short", "-x", ip)
	if err != nil {
		return "", fmt.Errorf("CommandRDNS.Lookup: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.TrimSuffix(line, "."), nil
	}
	return "", fmt.Errorf("CommandRDNS.Lookup: no PTR record for %s", ip)
}
