package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config is the fully resolved manifest: every default applied, every
// referenced file located. It is the single input to plan compilation, and
// its canonical JSON form is what "docsmith show" prints.
type Config struct {
	Version    int        `json:"version"`
	Formats    []string   `json:"formats,omitempty"`
	Build      Build      `json:"build"`
	Sphinx     *Sphinx    `json:"sphinx,omitempty"`
	MkDocs     *MkDocs    `json:"mkdocs,omitempty"`
	Python     Python     `json:"python"`
	Conda      *Conda     `json:"conda,omitempty"`
	Submodules Submodules `json:"submodules"`
	Search     Search     `json:"search"`
}

// DocTool names the documentation tool the config builds with. Empty when
// build.commands replaces the standard pipeline.
func (c *Config) DocTool() string {
	switch {
	case c.Sphinx != nil:
		return "sphinx"
	case c.MkDocs != nil:
		return "mkdocs"
	default:
		return ""
	}
}

// CommandsOnly reports whether the standard pipeline is replaced by a flat
// command list.
func (c *Config) CommandsOnly() bool { return len(c.Build.Commands) > 0 }

// Build is the resolved build environment.
type Build struct {
	OS          string            `json:"os"`
	Tools       map[string]string `json:"tools"`
	Jobs        Jobs              `json:"jobs"`
	AptPackages []string          `json:"apt_packages,omitempty"`
	Commands    []string          `json:"commands,omitempty"`
}

// Jobs carries the user commands hooked into each lifecycle point. A nil
// slice means the hook is unused.
type Jobs struct {
	PreCheckout    []string            `json:"pre_checkout,omitempty"`
	PostCheckout   []string            `json:"post_checkout,omitempty"`
	PreSystemDeps  []string            `json:"pre_system_dependencies,omitempty"`
	PostSystemDeps []string            `json:"post_system_dependencies,omitempty"`
	PreCreateEnv   []string            `json:"pre_create_environment,omitempty"`
	CreateEnv      []string            `json:"create_environment,omitempty"`
	PostCreateEnv  []string            `json:"post_create_environment,omitempty"`
	PreInstall     []string            `json:"pre_install,omitempty"`
	Install        []string            `json:"install,omitempty"`
	PostInstall    []string            `json:"post_install,omitempty"`
	PreBuild       []string            `json:"pre_build,omitempty"`
	Build          map[string][]string `json:"build,omitempty"`
	PostBuild      []string            `json:"post_build,omitempty"`
}

// Sphinx is the resolved sphinx tool section.
type Sphinx struct {
	Builder       string `json:"builder"`
	Configuration string `json:"configuration"`
	FailOnWarning bool   `json:"fail_on_warning"`
}

// MkDocs is the resolved mkdocs tool section.
type MkDocs struct {
	Configuration string `json:"configuration"`
	FailOnWarning bool   `json:"fail_on_warning"`
}

// Python is the resolved package installation section.
type Python struct {
	Install []Install `json:"install,omitempty"`
}

// Install is one resolved installation request. Exactly one of Requirements
// and Path is set.
type Install struct {
	Requirements      string   `json:"requirements,omitempty"`
	Path              string   `json:"path,omitempty"`
	Method            string   `json:"method,omitempty"`
	ExtraRequirements []string `json:"extra_requirements,omitempty"`
}

// Conda is the resolved conda section.
type Conda struct {
	Environment string `json:"environment"`
}

// Submodules is the resolved submodule policy. The zero value means no
// submodules are fetched.
type Submodules struct {
	All       bool     `json:"all"`
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
	Recursive bool     `json:"recursive"`
}

// Search is the resolved search tuning section.
type Search struct {
	Ranking map[string]int `json:"ranking,omitempty"`
	Ignore  []string       `json:"ignore,omitempty"`
}

// Resolve turns a validated File into a Config. projectDir anchors file
// discovery and existence checks. On errors the Config is nil; warnings ride
// along with a non-nil Config.
func Resolve(f *File, projectDir string) (*Config, Diagnostics) {
	var diags Diagnostics

	cfg := &Config{Version: SchemaVersion}
	cfg.Formats = resolveFormats(f.Formats)
	cfg.Build = resolveBuild(f.Build)

	switch {
	case f.Sphinx == nil && f.MkDocs == nil && len(cfg.Build.Commands) > 0:
		// Flat command list, no documentation tool to configure.
	case f.Sphinx == nil && f.MkDocs == nil:
		diags = append(diags, warnf(CodeImplicitTool, "sphinx",
			"no documentation tool declared; assuming sphinx"))
		sph, d := resolveSphinx(&RawSphinx{}, projectDir)
		diags = append(diags, d...)
		cfg.Sphinx = sph
	case f.Sphinx != nil:
		sph, d := resolveSphinx(f.Sphinx, projectDir)
		diags = append(diags, d...)
		cfg.Sphinx = sph
	default:
		mkd, d := resolveMkDocs(f.MkDocs, projectDir)
		diags = append(diags, d...)
		cfg.MkDocs = mkd
		if len(cfg.Formats) > 0 {
			diags = append(diags, warnf(CodeFormatsIgnored, "formats",
				"mkdocs produces html only; declared formats are ignored"))
			cfg.Formats = nil
		}
	}

	if f.Python != nil {
		cfg.Python.Install = resolveInstalls(f.Python.Install, projectDir, &diags)
	}

	if f.Conda != nil {
		cfg.Conda = &Conda{Environment: f.Conda.Environment}
		checkExists(projectDir, f.Conda.Environment, "conda.environment", &diags)
	}

	cfg.Submodules = resolveSubmodules(f.Submodules)
	cfg.Search = resolveSearch(f.Search)

	if diags.HasErrors() {
		return nil, diags
	}
	return cfg, diags
}

func resolveFormats(fl FormatList) []string {
	if fl.All {
		out := make([]string, len(KnownFormats))
		copy(out, KnownFormats)
		return out
	}
	if len(fl.Items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fl.Items))
	var out []string
	for _, f := range fl.Items {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func resolveBuild(b *RawBuild) Build {
	out := Build{
		OS:    b.OS,
		Tools: make(map[string]string, len(b.Tools)),
	}
	for name, version := range b.Tools {
		out.Tools[name] = version
	}
	out.AptPackages = append([]string(nil), b.AptPackages...)
	out.Commands = append([]string(nil), b.Commands...)
	if b.Jobs != nil {
		out.Jobs = resolveJobs(b.Jobs)
	}
	return out
}

func resolveJobs(j *RawJobs) Jobs {
	out := Jobs{
		PreCheckout:    append([]string(nil), j.PreCheckout...),
		PostCheckout:   append([]string(nil), j.PostCheckout...),
		PreSystemDeps:  append([]string(nil), j.PreSystemDependencies...),
		PostSystemDeps: append([]string(nil), j.PostSystemDependencies...),
		PreCreateEnv:   append([]string(nil), j.PreCreateEnvironment...),
		CreateEnv:      append([]string(nil), j.CreateEnvironment...),
		PostCreateEnv:  append([]string(nil), j.PostCreateEnvironment...),
		PreInstall:     append([]string(nil), j.PreInstall...),
		Install:        append([]string(nil), j.Install...),
		PostInstall:    append([]string(nil), j.PostInstall...),
		PreBuild:       append([]string(nil), j.PreBuild...),
		PostBuild:      append([]string(nil), j.PostBuild...),
	}
	if len(j.Build) > 0 {
		out.Build = make(map[string][]string, len(j.Build))
		for format, cmds := range j.Build {
			out.Build[format] = append([]string(nil), cmds...)
		}
	}
	return out
}

func resolveSphinx(s *RawSphinx, projectDir string) (*Sphinx, Diagnostics) {
	var diags Diagnostics
	out := &Sphinx{
		Builder:       s.Builder,
		Configuration: s.Configuration,
		FailOnWarning: s.FailOnWarning,
	}
	if out.Builder == "" {
		out.Builder = "html"
	}
	if out.Configuration == "" {
		found, ok := discoverToolConfig(projectDir, "conf.py")
		if !ok {
			diags = append(diags, errorf(CodeFileNotFound, "sphinx.configuration",
				"no conf.py found under %s; set sphinx.configuration", projectDir))
			return out, diags
		}
		out.Configuration = found
		diags = append(diags, warnf(CodeToolConfigDiscovered, "sphinx.configuration",
			"using discovered %s", found))
	} else {
		checkExists(projectDir, out.Configuration, "sphinx.configuration", &diags)
	}
	return out, diags
}

func resolveMkDocs(m *RawMkDocs, projectDir string) (*MkDocs, Diagnostics) {
	var diags Diagnostics
	out := &MkDocs{
		Configuration: m.Configuration,
		FailOnWarning: m.FailOnWarning,
	}
	if out.Configuration == "" {
		found, ok := discoverToolConfig(projectDir, "mkdocs.yml")
		if !ok {
			diags = append(diags, errorf(CodeFileNotFound, "mkdocs.configuration",
				"no mkdocs.yml found under %s; set mkdocs.configuration", projectDir))
			return out, diags
		}
		out.Configuration = found
		diags = append(diags, warnf(CodeToolConfigDiscovered, "mkdocs.configuration",
			"using discovered %s", found))
	} else {
		checkExists(projectDir, out.Configuration, "mkdocs.configuration", &diags)
	}
	return out, diags
}

func resolveInstalls(installs []RawInstall, projectDir string, diags *Diagnostics) []Install {
	out := make([]Install, 0, len(installs))
	for i, in := range installs {
		field := fmt.Sprintf("python.install[%d]", i)
		r := Install{
			Requirements:      in.Requirements,
			Path:              in.Path,
			Method:            in.Method,
			ExtraRequirements: append([]string(nil), in.ExtraRequirements...),
		}
		if r.Path != "" && r.Method == "" {
			r.Method = "pip"
		}
		if r.Requirements != "" {
			checkExists(projectDir, r.Requirements, field+".requirements", diags)
		}
		if r.Path != "" {
			checkExists(projectDir, r.Path, field+".path", diags)
		}
		out = append(out, r)
	}
	return out
}

func resolveSubmodules(s *RawSubmodules) Submodules {
	if s == nil {
		return Submodules{}
	}
	out := Submodules{Recursive: s.Recursive}
	switch {
	case s.Include.All:
		out.All = true
	case len(s.Include.Paths) > 0:
		out.Include = append([]string(nil), s.Include.Paths...)
	case s.Exclude.All:
		// Excluding everything fetches nothing; the zero policy already
		// says that.
		out.Recursive = false
	case len(s.Exclude.Paths) > 0:
		out.Exclude = append([]string(nil), s.Exclude.Paths...)
	default:
		out.Recursive = false
	}
	return out
}

func resolveSearch(s *RawSearch) Search {
	if s == nil {
		return Search{}
	}
	out := Search{}
	if len(s.Ranking) > 0 {
		out.Ranking = make(map[string]int, len(s.Ranking))
		for pattern, rank := range s.Ranking {
			out.Ranking[pattern] = rank
		}
	}
	out.Ignore = append([]string(nil), s.Ignore...)
	return out
}

// checkExists verifies that a manifest-referenced path exists inside the
// project. Path safety was already enforced by the semantic layer.
func checkExists(projectDir, rel, field string, diags *Diagnostics) {
	if _, err := os.Stat(filepath.Join(projectDir, filepath.FromSlash(rel))); err != nil {
		*diags = append(*diags, errorf(CodeFileNotFound, field, "%s does not exist in the project", rel))
	}
}

// discoverToolConfig walks the project looking for a tool configuration file
// by name. Shallowest match wins, ties break lexicographically. Hidden
// directories and build output are skipped.
func discoverToolConfig(projectDir, name string) (string, bool) {
	type match struct {
		rel   string
		depth int
	}
	var matches []match
	_ = filepath.WalkDir(projectDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p == projectDir {
				return nil
			}
			base := d.Name()
			if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") ||
				base == "node_modules" || base == "venv" {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != name {
			return nil
		}
		rel, err := filepath.Rel(projectDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		matches = append(matches, match{rel: rel, depth: strings.Count(rel, "/")})
		return nil
	})
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].depth != matches[j].depth {
			return matches[i].depth < matches[j].depth
		}
		return matches[i].rel < matches[j].rel
	})
	return matches[0].rel, true
}
