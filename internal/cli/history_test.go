package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docsmith/internal/store"
)

func seedHistory(t *testing.T, builds ...*store.Build) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	for _, b := range builds {
		require.NoError(t, st.RecordBuild(context.Background(), b))
	}
	return db
}

func sampleBuild(id string, started time.Time, status string) *store.Build {
	exitCode := 0
	errMsg := ""
	if status == "failed" {
		exitCode = 2
		errMsg = "step 2 (sphinx html): exit code 2"
	}
	return &store.Build{
		ID:             id,
		Project:        "demo",
		ManifestPath:   ".readthedocs.yaml",
		ManifestDigest: strings.Repeat("a", 64),
		PlanDigest:     strings.Repeat("b", 64),
		Version:        "latest",
		Formats:        []string{"html"},
		Status:         status,
		Error:          errMsg,
		StartedAt:      started,
		Duration:       1500 * time.Millisecond,
		Steps: []store.Step{
			{
				BuildID: id, Seq: 1, Phase: "system", Name: "prepare output directories",
				Kind: "mkdir", Command: []string{"_readthedocs"},
				Status: "succeeded", StartedAt: started, Duration: 10 * time.Millisecond,
			},
			{
				BuildID: id, Seq: 2, Phase: "build", Name: "sphinx html",
				Kind: "exec", Command: []string{"python", "-m", "sphinx"},
				Status: status, ExitCode: exitCode,
				StartedAt: started.Add(10 * time.Millisecond), Duration: 900 * time.Millisecond,
			},
		},
	}
}

func historyOutput(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryListNewestFirst(t *testing.T) {
	now := time.Now()
	db := seedHistory(t,
		sampleBuild("older-build", now.Add(-time.Hour), "succeeded"),
		sampleBuild("newer-build", now, "failed"),
	)

	out, err := historyOutput(t, "text", "--db", db)
	require.NoError(t, err)

	newer := strings.Index(out, "newer-build")
	older := strings.Index(out, "older-build")
	require.NotEqual(t, -1, newer)
	require.NotEqual(t, -1, older)
	assert.Less(t, newer, older, "newest build listed first")
	assert.Contains(t, out, "demo")
}

func TestHistoryListLimit(t *testing.T) {
	now := time.Now()
	db := seedHistory(t,
		sampleBuild("build-1", now.Add(-2*time.Hour), "succeeded"),
		sampleBuild("build-2", now.Add(-time.Hour), "succeeded"),
		sampleBuild("build-3", now, "succeeded"),
	)

	out, err := historyOutput(t, "json", "list", "--db", db, "--limit", "2")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []buildView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "build-3", resp.Data[0].ID)
	assert.Equal(t, "build-2", resp.Data[1].ID)
}

func TestHistoryShow(t *testing.T) {
	db := seedHistory(t, sampleBuild("some-build", time.Now(), "succeeded"))

	out, err := historyOutput(t, "text", "show", "some-build", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Build some-build")
	assert.Contains(t, out, "project:  demo")
	assert.Contains(t, out, "status:   succeeded")
	assert.Contains(t, out, "sha256 aaaaaaaaaaaa", "digest is shortened")
	assert.Contains(t, out, "sphinx html")
	assert.Contains(t, out, "prepare output directories")
}

func TestHistoryShowFailedBuild(t *testing.T) {
	db := seedHistory(t, sampleBuild("bad-build", time.Now(), "failed"))

	out, err := historyOutput(t, "text", "show", "bad-build", "--db", db)
	require.NoError(t, err, "showing a failed build is not itself a failure")
	assert.Contains(t, out, "error:    step 2 (sphinx html): exit code 2")
}

func TestHistoryShowJSON(t *testing.T) {
	db := seedHistory(t, sampleBuild("some-build", time.Now(), "succeeded"))

	out, err := historyOutput(t, "json", "show", "some-build", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   buildView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "some-build", resp.Data.ID)
	assert.Equal(t, []string{"html"}, resp.Data.Formats)
	require.Len(t, resp.Data.Steps, 2)
	assert.Equal(t, "sphinx html", resp.Data.Steps[1].Name)
	assert.EqualValues(t, 900, resp.Data.Steps[1].DurationMS)
}

func TestHistoryShowUnknownID(t *testing.T) {
	db := seedHistory(t, sampleBuild("some-build", time.Now(), "succeeded"))

	out, err := historyOutput(t, "text", "show", "missing-build", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E302")
	assert.Contains(t, out, "build missing-build not found")
}

func TestHistoryListMissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := historyOutput(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No builds recorded.")
}

func TestHistoryListMissingDatabaseJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := historyOutput(t, "json", "list", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []buildView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)
}

func TestHistoryShowMissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, err := historyOutput(t, "text", "show", "whatever", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no build history at")
}
