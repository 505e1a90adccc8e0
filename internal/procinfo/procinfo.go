package procinfo

import (
	"context"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

// Inspector backfills process facts the dialog didn't surface. The alert's
// pid is only advisory — the dialog may outlive the process — so every
// failure here is silent and the alert passes through unchanged.
type Inspector struct {
	logger *zap.Logger
}

// New creates an inspector.
func New(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Backfill returns a copy of the alert with locally observed process facts
// filled into empty fields. Extracted values are never overwritten.
func (i *Inspector) Backfill(ctx context.Context, a alert.ConnectionAlert) alert.ConnectionAlert {
	if a.ProcessID == "" {
		return a
	}
	pid, err := strconv.ParseInt(a.ProcessID, 10, 32)
	if err != nil {
		return a
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		i.logger.Debug("pid not found locally", zap.String("pid", a.ProcessID))
		return a
	}

	out := a
	if out.ProcessPath == "" {
		if exe, err := proc.ExeWithContext(ctx); err == nil {
			out.ProcessPath = exe
		}
	}
	if out.ProcessArgs == "" {
		if cmdline, err := proc.CmdlineWithContext(ctx); err == nil {
			out.ProcessArgs = cmdline
		}
	}
	if out.ProcessName == "" {
		if name, err := proc.NameWithContext(ctx); err == nil {
			out.ProcessName = name
		}
	}
	return out
}
