package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only manifest schema version docsmith accepts.
const SchemaVersion = 2

// Output formats beyond HTML, which is always built.
const (
	FormatHTMLZip = "htmlzip"
	FormatPDF     = "pdf"
	FormatEPUB    = "epub"
)

// KnownFormats lists the valid entries of the formats key, in canonical order.
var KnownFormats = []string{FormatEPUB, FormatHTMLZip, FormatPDF}

// KnownToolchains lists the tool names accepted under build.tools.
var KnownToolchains = []string{"golang", "nodejs", "python", "ruby", "rust"}

// KnownOperatingSystems lists the accepted build.os values.
var KnownOperatingSystems = []string{
	"ubuntu-20.04",
	"ubuntu-22.04",
	"ubuntu-24.04",
	"ubuntu-lts-latest",
}

// File is the raw manifest document as authored, bound 1:1 to the YAML
// structure. Pointer fields distinguish "absent" from "empty". File is the
// input to semantic validation and resolution; nothing downstream of
// Resolve should touch it.
type File struct {
	Version    *int           `yaml:"version"`
	Formats    FormatList     `yaml:"formats"`
	Build      *RawBuild      `yaml:"build"`
	Sphinx     *RawSphinx     `yaml:"sphinx"`
	MkDocs     *RawMkDocs     `yaml:"mkdocs"`
	Python     *RawPython     `yaml:"python"`
	Conda      *RawConda      `yaml:"conda"`
	Submodules *RawSubmodules `yaml:"submodules"`
	Search     *RawSearch     `yaml:"search"`
}

// RawBuild is the build-environment section: operating system, toolchain
// versions, lifecycle job hooks, system packages, and the full-override
// command list.
type RawBuild struct {
	OS          string            `yaml:"os"`
	Tools       map[string]string `yaml:"tools"`
	Jobs        *RawJobs          `yaml:"jobs"`
	AptPackages []string          `yaml:"apt_packages"`
	Commands    []string          `yaml:"commands"`
}

// RawJobs holds the lifecycle hooks. Each slice is a list of shell commands
// run in order around the phase the name describes. Build replaces the
// default build commands per output format.
type RawJobs struct {
	PreCheckout            []string            `yaml:"pre_checkout"`
	PostCheckout           []string            `yaml:"post_checkout"`
	PreSystemDependencies  []string            `yaml:"pre_system_dependencies"`
	PostSystemDependencies []string            `yaml:"post_system_dependencies"`
	PreCreateEnvironment   []string            `yaml:"pre_create_environment"`
	CreateEnvironment      []string            `yaml:"create_environment"`
	PostCreateEnvironment  []string            `yaml:"post_create_environment"`
	PreInstall             []string            `yaml:"pre_install"`
	Install                []string            `yaml:"install"`
	PostInstall            []string            `yaml:"post_install"`
	PreBuild               []string            `yaml:"pre_build"`
	Build                  map[string][]string `yaml:"build"`
	PostBuild              []string            `yaml:"post_build"`
}

// RawSphinx is the documentation-tool section for Sphinx projects.
type RawSphinx struct {
	Builder       string `yaml:"builder"`
	Configuration string `yaml:"configuration"`
	FailOnWarning bool   `yaml:"fail_on_warning"`
}

// RawMkDocs is the documentation-tool section for MkDocs projects.
type RawMkDocs struct {
	Configuration string `yaml:"configuration"`
	FailOnWarning bool   `yaml:"fail_on_warning"`
}

// RawPython is the package-installation section.
type RawPython struct {
	Install []RawInstall `yaml:"install"`
}

// RawInstall is one installation entry: either a requirements file, or a
// package path with an install method and optional extras. Exactly one of
// Requirements and Path must be set.
type RawInstall struct {
	Requirements      string   `yaml:"requirements"`
	Path              string   `yaml:"path"`
	Method            string   `yaml:"method"`
	ExtraRequirements []string `yaml:"extra_requirements"`
}

// RawConda declares a conda environment file.
type RawConda struct {
	Environment string `yaml:"environment"`
}

// RawSubmodules controls which git submodules are fetched before the build.
type RawSubmodules struct {
	Include   PathSelector `yaml:"include"`
	Exclude   PathSelector `yaml:"exclude"`
	Recursive bool         `yaml:"recursive"`
}

// RawSearch tunes server-side search; docsmith validates and surfaces it
// but has no local behavior attached.
type RawSearch struct {
	Ranking map[string]int `yaml:"ranking"`
	Ignore  []string       `yaml:"ignore"`
}

// FormatList is the formats key: either the string "all" or a list of
// format names.
type FormatList struct {
	All   bool
	Items []string
}

// UnmarshalYAML accepts `formats: all` as well as a sequence.
func (f *FormatList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "all" {
			return fmt.Errorf("formats: expected a list or %q, got %q", "all", s)
		}
		f.All = true
		return nil
	case yaml.SequenceNode:
		return value.Decode(&f.Items)
	default:
		return fmt.Errorf("formats: expected a list or %q", "all")
	}
}

// PathSelector is a submodule selector: either the string "all" or a list
// of submodule paths.
type PathSelector struct {
	All   bool
	Paths []string
}

// UnmarshalYAML accepts `all` as well as a sequence of paths.
func (p *PathSelector) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "all" {
			return fmt.Errorf("expected a list of paths or %q, got %q", "all", s)
		}
		p.All = true
		return nil
	case yaml.SequenceNode:
		return value.Decode(&p.Paths)
	default:
		return fmt.Errorf("expected a list of paths or %q", "all")
	}
}

// IsZero reports whether the selector was absent from the manifest.
func (p PathSelector) IsZero() bool {
	return !p.All && len(p.Paths) == 0
}
