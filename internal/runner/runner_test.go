package runner_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promexec/promexec/internal/model"
	"github.com/promexec/promexec/internal/runner"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)
	require.NoError(t, err)
	return path
}

func spec(path string, timeout time.Duration, args ...string) model.ScriptSpec {
	return model.ScriptSpec{Path: path, Args: args, Timeout: timeout}
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	path := writeScript(t, "ok.sh", "echo 'up 1'\necho 'down 0'\n")
	out := runner.Run(t.Context(), spec(path, 5*time.Second))
	require.Equal(t, "up 1\ndown 0\n", out)
}

func TestRunArgs(t *testing.T) {
	t.Parallel()

	path := writeScript(t, "args.sh", `echo "metric{arg=\"$1\"} $2"`+"\n")
	out := runner.Run(t.Context(), spec(path, 5*time.Second, "first", "2"))
	require.Equal(t, "metric{arg=\"first\"} 2\n", out)
}

func TestRunNonZeroExit(t *testing.T) {
	t.Parallel()

	// stdout of a failing script must not leak into the stream
	path := writeScript(t, "fail.sh", "echo 'partial 1'\necho 'boom' >&2\nexit 3\n")
	out := runner.Run(t.Context(), spec(path, 5*time.Second))
	require.Equal(t, "# ERROR: Script fail.sh failed\n", out)
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	path := writeScript(t, "slow.sh", "sleep 5\necho 'late 1'\n")

	started := time.Now()
	out := runner.Run(t.Context(), spec(path, 1*time.Second))
	elapsed := time.Since(started)

	require.Equal(t, "# ERROR: Script slow.sh timed out after 1s\n", out)
	// the child is killed on expiry, Run must not wait the full sleep
	require.Less(t, elapsed, 4*time.Second)
}

func TestRunTimeoutLingeringChild(t *testing.T) {
	t.Parallel()

	// the shell forks sleep, so killing the shell alone would leave a
	// descendant holding the stdout pipe for the full 30s
	path := writeScript(t, "forker.sh", "sleep 30 &\nsleep 30\n")

	started := time.Now()
	out := runner.Run(t.Context(), spec(path, 1*time.Second))
	elapsed := time.Since(started)

	require.Equal(t, "# ERROR: Script forker.sh timed out after 1s\n", out)
	require.Less(t, elapsed, 4*time.Second)
}

func TestRunBackgroundChildDoesNotBlock(t *testing.T) {
	t.Parallel()

	// the script exits cleanly but its backgrounded child inherits the
	// output pipes; Run must return the captured output without
	// waiting for the child
	path := writeScript(t, "daemonish.sh", "sleep 6 &\necho 'up 1'\n")

	started := time.Now()
	out := runner.Run(t.Context(), spec(path, 10*time.Second))
	elapsed := time.Since(started)

	require.Equal(t, "up 1\n", out)
	require.Less(t, elapsed, 4*time.Second)
}

func TestRunMissingScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope.sh")
	out := runner.Run(t.Context(), spec(path, time.Second))
	require.Equal(t, "# ERROR: Failed to run script nope.sh: script not found\n", out)
}

func TestRunNotARegularFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := runner.Run(t.Context(), spec(dir, time.Second))
	require.Equal(t,
		fmt.Sprintf("# ERROR: Failed to run script %s: not a regular file\n", filepath.Base(dir)),
		out)
}

func TestRunNotExecutable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644)
	require.NoError(t, err)

	out := runner.Run(t.Context(), spec(path, time.Second))
	require.Contains(t, out, "# ERROR: Failed to run script plain.sh: ")
}
