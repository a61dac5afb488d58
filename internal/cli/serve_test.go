package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", serveURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", serveURL("127.0.0.1:9000"))
}

func TestServeStartsAndStops(t *testing.T) {
	dir := t.TempDir()
	html := filepath.Join(dir, "_readthedocs", "html")
	require.NoError(t, os.MkdirAll(html, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(html, "index.html"), []byte("<html></html>"), 0o644))

	buf := &syncBuffer{}
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir, "--addr", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitForOutput(t, buf, "Serving ", 1)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.Contains(t, buf.String(), filepath.Join("_readthedocs", "html"))
}

func TestServeBadAddress(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{t.TempDir(), "--addr", "999.999.999.999:1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E303")
}
