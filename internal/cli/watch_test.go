package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the test read command output while the command is still
// writing it from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, buf *syncBuffer, want string, count int) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(buf.String(), want) >= count {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d of %q in output:\n%s", count, want, buf.String())
}

// startWatchCommand runs the watch command in the background and returns its
// output buffer, a stop function and the command's error channel.
func startWatchCommand(t *testing.T, args ...string) (*syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()

	buf := &syncBuffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("watch command did not stop")
		}
	})
	return buf, cancel, done
}

func TestWatchMissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E300")
}

func TestWatchBuildsOnStartAndStops(t *testing.T) {
	dir := writeProject(t, commandsManifest)

	buf, cancel, done := startWatchCommand(t, dir, "--debounce", "50ms")
	waitForOutput(t, buf, "✓ build succeeded", 1)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	out := buf.String()
	assert.Contains(t, out, "Watching ")
	assert.Contains(t, out, "Watch stopped.")
}

func TestWatchRebuildsOnChange(t *testing.T) {
	dir := writeProject(t, commandsManifest)

	buf, _, _ := startWatchCommand(t, dir, "--debounce", "50ms")
	waitForOutput(t, buf, "✓ build succeeded", 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.rst"), []byte("change\n"), 0o644))
	waitForOutput(t, buf, "✓ build succeeded", 2)
}

func TestWatchSurvivesManifestBreakage(t *testing.T) {
	dir := writeProject(t, commandsManifest)
	manifestPath := filepath.Join(dir, ".readthedocs.yaml")

	buf, _, _ := startWatchCommand(t, dir, "--debounce", "50ms")
	waitForOutput(t, buf, "✓ build succeeded", 1)

	// Break the manifest: the watch reports it and keeps running.
	require.NoError(t, os.WriteFile(manifestPath, []byte("version: 3\n"), 0o644))
	waitForOutput(t, buf, "✗ manifest invalid; waiting for changes", 1)

	// Fix it again: the next change rebuilds.
	require.NoError(t, os.WriteFile(manifestPath, []byte(commandsManifest), 0o644))
	waitForOutput(t, buf, "✓ build succeeded", 2)
}
