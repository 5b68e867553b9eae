// Package build runs the project's build command on the local machine.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	apperrors "github.com/jayteealao/distpush/internal/errors"
)

// Runner executes an opaque build command through the platform shell.
type Runner struct {
	workingDir string
	stdout     io.Writer // If nil, uses os.Stdout
	stderr     io.Writer // If nil, uses os.Stderr
}

// NewRunner creates a runner that executes commands in workingDir.
func NewRunner(workingDir string) *Runner {
	return &Runner{workingDir: workingDir}
}

// WorkingDir returns the directory commands run in.
func (r *Runner) WorkingDir() string {
	return r.workingDir
}

// SetOutputStreams sets custom output streams for testing.
func (r *Runner) SetOutputStreams(stdout, stderr io.Writer) {
	r.stdout = stdout
	r.stderr = stderr
}

func (r *Runner) getStdout() io.Writer {
	if r.stdout != nil {
		return r.stdout
	}
	return os.Stdout
}

func (r *Runner) getStderr() io.Writer {
	if r.stderr != nil {
		return r.stderr
	}
	return os.Stderr
}

// Run executes script and blocks until it exits. No timeout is applied.
// A non-zero exit or a launch failure is reported as ErrBuildFailed.
func (r *Runner) Run(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("%w: empty build command", apperrors.ErrBuildFailed)
	}

	cmd := shellCommand(ctx, script)
	cmd.Dir = r.workingDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.getStdout()
	cmd.Stderr = r.getStderr()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %q exited with code %d", apperrors.ErrBuildFailed, script, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %v", apperrors.ErrBuildFailed, err)
	}
	return nil
}

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", script)
	}
	return exec.CommandContext(ctx, "sh", "-c", script)
}
