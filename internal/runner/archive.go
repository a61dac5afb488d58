package runner

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/docsmith/docsmith/internal/plan"
)

// runArchive zips a directory in-process. Command is [src, dest], both
// relative to the plan root.
func runArchive(root string, s plan.Step) error {
	if len(s.Command) != 2 {
		return fmt.Errorf("archive step wants [src, dest], got %d arguments", len(s.Command))
	}
	return zipDir(stepDir(root, s.Command[0]), stepDir(root, s.Command[1]))
}

// zipDir writes a zip of dir's contents to dest, replacing it atomically so
// a served archive is never half-written. Entries follow the lexical walk
// order, so identical trees produce identical archives.
func zipDir(dir, dest string) error {
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	zw := zip.NewWriter(pending)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		zw.Close()
		return walkErr
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
