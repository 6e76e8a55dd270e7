package forge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// Output is what one process run produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ExecFunc runs name with args in dir. A non-zero exit is reported through
// Output.ExitCode with a nil error; launch failures and context expiry are
// returned as errors together with whatever output was captured.
type ExecFunc func(ctx context.Context, dir, name string, args ...string) (Output, error)

const waitDelay = 2 * time.Second

// SystemExec runs the command as a real subprocess.
func SystemExec(ctx context.Context, dir, name string, args ...string) (Output, error) {
	// #nosec G204 -- the tool path comes from configuration
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "FOUNDRY_DISABLE_NIGHTLY_WARNING=1")
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, nil
	}
	return out, err
}
