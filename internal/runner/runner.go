// Package runner executes one external script with a timeout and
// converts every failure mode into a sentinel comment line, so a bad
// script can never break the aggregation stream.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/promexec/promexec/internal/model"
)

// Run invokes the script directly (never through a shell), captures
// stdout and stderr, and waits up to the spec timeout. On success it
// returns the captured stdout; otherwise a single "# ERROR:" comment
// line. Stderr and exit detail go to the log only, they are never part
// of the returned text. Run does not return an error: the contract is
// "always returns text".
func Run(ctx context.Context, script model.ScriptSpec) string {
	name := filepath.Base(script.Path)

	info, err := os.Stat(script.Path)
	if err != nil {
		slog.ErrorContext(ctx, "script not runnable", "path", script.Path, "error", err)
		if os.IsNotExist(err) {
			return failedToRun(name, "script not found")
		}
		return failedToRun(name, err.Error())
	}
	if !info.Mode().IsRegular() {
		slog.ErrorContext(ctx, "script is not a regular file", "path", script.Path)
		return failedToRun(name, "not a regular file")
	}

	ctx, cancel := context.WithTimeout(ctx, script.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script.Path, script.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The script runs in its own process group and expiry kills the
	// whole group: descendants inherit the output pipes, and a kill of
	// the direct child alone would leave Wait blocked on them for as
	// long as they live. WaitDelay is the backstop for descendants
	// that escape the group and still hold a pipe open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	started := time.Now()
	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		slog.ErrorContext(ctx, "script timed out",
			"path", script.Path,
			"timeout", script.Timeout.String(),
		)
		return fmt.Sprintf("# ERROR: Script %s timed out after %ds\n",
			name, int(script.Timeout/time.Second))
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrWaitDelay) {
			// The script itself exited cleanly; only a background
			// descendant kept the pipes open past WaitDelay.
			slog.WarnContext(ctx, "script left children holding its output pipes",
				"path", script.Path,
			)
			return stdout.String()
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Non-zero exit: stdout of a failing script is discarded,
			// stderr is recorded for operators only.
			slog.ErrorContext(ctx, "script failed",
				"path", script.Path,
				"exit_code", exitErr.ExitCode(),
				"stderr", stderr.String(),
				"elapsed", time.Since(started).String(),
			)
			return fmt.Sprintf("# ERROR: Script %s failed\n", name)
		}
		slog.ErrorContext(ctx, "running script", "path", script.Path, "error", runErr)
		return failedToRun(name, runErr.Error())
	}

	slog.DebugContext(ctx, "script finished",
		"path", script.Path,
		"elapsed", time.Since(started).String(),
	)
	return stdout.String()
}

func failedToRun(name, reason string) string {
	return fmt.Sprintf("# ERROR: Failed to run script %s: %s\n", name, reason)
}
