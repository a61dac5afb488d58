package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docsmith/internal/store"
)

// commandsManifest replaces the standard pipeline with a flat command list,
// so builds stay fast and need no python environment.
const commandsManifest = `version: 2

build:
  os: ubuntu-24.04
  tools:
    python: "3"
  commands:
    - echo built
`

const failingCommandsManifest = `version: 2

build:
  os: ubuntu-24.04
  tools:
    python: "3"
  commands:
    - echo starting
    - echo boom && exit 1
    - echo never
`

func buildOutput(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewBuildCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestBuildCommandsOnly(t *testing.T) {
	dir := writeProject(t, commandsManifest)

	out, err := buildOutput(t, "text", dir, "--no-history")
	require.NoError(t, err)

	assert.Contains(t, out, "echo built")
	assert.Contains(t, out, "✓ build")
	assert.Contains(t, out, "succeeded in")

	info, err := os.Stat(filepath.Join(dir, "_readthedocs", "html"))
	require.NoError(t, err, "output directories should be prepared")
	assert.True(t, info.IsDir())
}

func TestBuildRecordsHistory(t *testing.T) {
	dir := writeProject(t, commandsManifest)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := buildOutput(t, "text", dir, "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	builds, err := st.RecentBuilds(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, builds, 1)

	b := builds[0]
	assert.Equal(t, "succeeded", b.Status)
	assert.Equal(t, "latest", b.Version)
	assert.Equal(t, ".readthedocs.yaml", b.ManifestPath)
	assert.Len(t, b.ManifestDigest, 64)
	assert.Len(t, b.PlanDigest, 64)

	full, err := st.GetBuild(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, full.Steps, 3, "mkdir, probe, one command")
	assert.Equal(t, "echo built", full.Steps[2].Name)
}

func TestBuildNoHistory(t *testing.T) {
	dir := writeProject(t, commandsManifest)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := buildOutput(t, "text", dir, "--db", db, "--no-history")
	require.NoError(t, err)

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "--no-history must not create the database")
}

func TestBuildFailure(t *testing.T) {
	dir := writeProject(t, failingCommandsManifest)

	out, err := buildOutput(t, "text", dir, "--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ build")
	assert.Contains(t, out, "exit code 1")
	assert.Contains(t, out, "--- log: step")
	assert.Contains(t, out, "boom", "failed step output is shown")
	assert.Contains(t, out, "skipped", "steps after the failure are skipped")
}

func TestBuildFailureRecorded(t *testing.T) {
	dir := writeProject(t, failingCommandsManifest)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := buildOutput(t, "text", dir, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	builds, err := st.RecentBuilds(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "failed", builds[0].Status)
	assert.Contains(t, builds[0].Error, "exit code 1")
}

func TestBuildJSONSuccess(t *testing.T) {
	dir := writeProject(t, commandsManifest)

	out, err := buildOutput(t, "json", dir, "--no-history")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   buildView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "succeeded", resp.Data.Status)
	require.Len(t, resp.Data.Steps, 3)
	for _, s := range resp.Data.Steps {
		assert.Equal(t, "succeeded", s.Status)
	}
}

func TestBuildJSONFailure(t *testing.T) {
	dir := writeProject(t, failingCommandsManifest)

	out, err := buildOutput(t, "json", dir, "--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   buildView `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuild, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "exit code 1")
	assert.Equal(t, "failed", resp.Data.Status, "the partial result rides along")
}

func TestBuildBadDatabasePath(t *testing.T) {
	dir := writeProject(t, commandsManifest)

	out, err := buildOutput(t, "text", dir, "--db", "/dev/null/nested/history.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E302")
}

func TestBuildInvalidManifest(t *testing.T) {
	dir := writeProject(t, badOSManifest, "docs/conf.py")

	out, err := buildOutput(t, "text", dir, "--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E103")
}
