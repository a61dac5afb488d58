package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// Project ties a manifest to the directory it configures. Digest identifies
// the exact manifest bytes, so build history can tell configs apart.
type Project struct {
	Dir          string
	ManifestPath string
	Raw          *File
	Config       *Config
	Digest       string
}

// LoadProject discovers, parses and resolves the manifest for dir. The
// returned Project is always non-nil; Config is nil when the diagnostics
// contain errors.
func LoadProject(dir string) (*Project, Diagnostics) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return &Project{Dir: dir}, Diagnostics{errorf(CodeGeneric, "", "resolving project directory: %v", err)}
	}
	p := &Project{Dir: abs}

	path, ok := Find(abs)
	if !ok {
		return p, Diagnostics{errorf(CodeNotFound, "",
			"no manifest in %s (looked for %s)", abs, strings.Join(Filenames, ", "))}
	}
	p.ManifestPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		return p, Diagnostics{errorf(CodeReadFailed, "", "reading %s: %v", path, err)}
	}
	sum := sha256.Sum256(data)
	p.Digest = hex.EncodeToString(sum[:])

	f, diags := ParseBytes(path, data)
	p.Raw = f
	if f == nil || diags.HasErrors() {
		return p, diags
	}

	cfg, rdiags := Resolve(f, abs)
	diags = append(diags, rdiags...)
	p.Config = cfg
	return p, diags
}
