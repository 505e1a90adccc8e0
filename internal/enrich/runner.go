package enrich

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes one of the text-in/text-out lookup utilities and returns
// its stdout. Abstracted so tests can script outputs without subprocesses.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner shells out via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ExecRunner.Run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
