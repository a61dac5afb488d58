package manifest

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Filenames recognized as manifests, in discovery order. The first match in
// the project directory wins.
var Filenames = []string{
	".readthedocs.yaml",
	".readthedocs.yml",
	"readthedocs.yaml",
	"readthedocs.yml",
}

// Find locates the manifest file inside projectDir.
func Find(projectDir string) (string, bool) {
	for _, name := range Filenames {
		p := filepath.Join(projectDir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Parse reads and validates the manifest at path. The returned File is nil
// when the document could not be bound; the diagnostics carry everything
// found on the way, errors and warnings alike.
func Parse(path string) (*File, Diagnostics) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Diagnostics{errorf(CodeNotFound, "", "manifest not found: %s", path)}
		}
		return nil, Diagnostics{errorf(CodeReadFailed, "", "reading manifest: %v", err)}
	}
	return ParseBytes(path, data)
}

// ParseBytes runs the full validation pipeline on an in-memory manifest.
// filename is used in positions only.
func ParseBytes(filename string, data []byte) (*File, Diagnostics) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, Diagnostics{errorf(CodeEmptyManifest, "", "manifest is empty")}
	}

	// Version gate before the schema runs: a version-1 document would
	// otherwise drown in unknown-key errors instead of getting one clear
	// upgrade message.
	if d, ok := checkVersion(data); !ok {
		return nil, Diagnostics{d}
	}

	if diags := validateStructure(filename, data); diags.HasErrors() {
		return nil, diags
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		// The structural layer passed, so this is a shape the binding types
		// cannot express; surface it rather than mask it.
		return nil, Diagnostics{errorf(CodeInvalidType, "", "binding manifest: %v", err)}
	}

	return &f, validateSemantics(&f)
}

// checkVersion inspects only the version key. Returns ok=true when the rest
// of the pipeline should proceed; syntax errors are deferred to the
// structural layer, which has positions.
func checkVersion(data []byte) (Diagnostic, bool) {
	var head struct {
		Version any `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Diagnostic{}, true
	}
	switch v := head.Version.(type) {
	case nil:
		return errorf(CodeMissingRequired, "version", "version is required (set \"version: 2\")"), false
	case int:
		if v != SchemaVersion {
			return errorf(CodeUnsupportedVersion, "version",
				"unsupported schema version %d; only version 2 is supported", v), false
		}
	default:
		return errorf(CodeUnsupportedVersion, "version",
			"unsupported schema version %v; only version 2 is supported", v), false
	}
	return Diagnostic{}, true
}
