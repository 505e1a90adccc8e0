package uitree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const bridgeTimeout = 5 * time.Second

// BridgeProvider reads the accessibility tree through a helper subprocess
// that dumps the watched process's windows as JSON on stdout. Keeping the
// OS accessibility calls in a separate helper keeps this agent portable
// and gives the poll loop a hard timeout on a surface that can hang.
type BridgeProvider struct {
	helperPath string
	logger     *zap.Logger
}

// NewBridgeProvider creates a provider that shells out to helperPath.
func NewBridgeProvider(helperPath string, logger *zap.Logger) *BridgeProvider {
	return &BridgeProvider{helperPath: helperPath, logger: logger}
}

// bridgeOutput is the helper's stdout schema.
type bridgeOutput struct {
	Windows []Window `json:"windows"`
}

// Windows invokes the helper with the bundle id (and display-name fallback)
// and parses its JSON dump.
func (p *BridgeProvider) Windows(ctx context.Context, app AppMatch) ([]Window, error) {
	ctx, cancel := context.WithTimeout(ctx, bridgeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.helperPath,
		"--bundle-id", app.BundleID,
		"--app-name", app.DisplayName,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("BridgeProvider.Windows: %w", err)
	}

	var out bridgeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		p.logger.Warn("accessibility helper produced malformed output",
			zap.String("helper", p.helperPath),
			zap.Error(err),
		)
		return nil, fmt.Errorf("BridgeProvider.Windows: %w", err)
	}

	return out.Windows, nil
}
