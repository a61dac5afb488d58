package runner

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docsmith/internal/plan"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func zipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = string(body)
	}
	return entries
}

func TestArchiveStepZipsDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"_readthedocs/.htmlzip/index.html":      "<html>index</html>",
		"_readthedocs/.htmlzip/guide/page.html": "<html>guide</html>",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_readthedocs/htmlzip"), 0o755))

	r := New(Options{})
	p := testPlan(root, plan.Step{
		Phase:   plan.PhaseFinalize,
		Name:    "archive htmlzip",
		Kind:    plan.KindArchive,
		Command: []string{"_readthedocs/.htmlzip", "_readthedocs/htmlzip/demo-latest.zip"},
		Format:  "htmlzip",
	})

	res := r.Run(context.Background(), p)
	require.Equal(t, StatusSucceeded, res.Status, "error: %s", res.Error)

	entries := zipEntries(t, filepath.Join(root, "_readthedocs/htmlzip/demo-latest.zip"))
	assert.Equal(t, map[string]string{
		"index.html":      "<html>index</html>",
		"guide/page.html": "<html>guide</html>",
	}, entries)
}

func TestArchiveReplacesExistingAtomically(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/doc.html": "fresh",
	})
	dest := filepath.Join(root, "out.zip")
	require.NoError(t, os.WriteFile(dest, []byte("stale garbage"), 0o644))

	require.NoError(t, zipDir(filepath.Join(root, "src"), dest))

	entries := zipEntries(t, dest)
	assert.Equal(t, map[string]string{"doc.html": "fresh"}, entries)
}

func TestArchiveMissingSourceFails(t *testing.T) {
	root := t.TempDir()
	err := zipDir(filepath.Join(root, "absent"), filepath.Join(root, "out.zip"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "out.zip"), "failed archive must not leave output")
}

func TestArchiveStepArgumentCount(t *testing.T) {
	err := runArchive(t.TempDir(), plan.Step{Kind: plan.KindArchive, Command: []string{"only-src"}})
	require.Error(t, err)
}
