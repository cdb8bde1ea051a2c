package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/emcomm-tools/et-launcher/internal/fault"
)

// Output is the captured result of a synchronous run.
type Output struct {
	Stdout   string
	Stderr   string
	Success  bool
	ExitCode int
}

// RunSync runs a short-lived helper to completion and captures both streams.
// A non-zero exit is reported through Output.Success, not as an error.
func RunSync(ctx context.Context, command string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Output{}, fault.New(fault.Spawn, "run", command, err)
	}

	err := cmd.Wait()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.Success = true
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, fmt.Errorf("waiting for %s: %w", command, err)
	}
	return out, nil
}
