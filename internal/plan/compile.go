package plan

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/docsmith/docsmith/internal/manifest"
)

// toolBinaries maps manifest tool names to the binary probed for them.
var toolBinaries = map[string]string{
	"golang": "go",
	"nodejs": "node",
	"python": "python3",
	"ruby":   "ruby",
	"rust":   "rustc",
}

// CompileOptions adjust plan compilation. The zero value compiles the full
// plan for version "latest" into DefaultOutputDir.
type CompileOptions struct {
	Version    string   // document version label
	OutputDir  string   // output root relative to the project
	VenvDir    string   // interpreter env dir relative to the project; default <OutputDir>/.venv
	SkipSystem bool     // omit apt-get steps
	Formats    []string // restrict offline formats to this subset
}

// Compile turns a loaded project into a Plan.
func Compile(project *manifest.Project, opts CompileOptions) (*Plan, error) {
	cfg := project.Config
	if cfg == nil {
		return nil, fmt.Errorf("compile: project has no resolved configuration")
	}
	if opts.Version == "" {
		opts.Version = "latest"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	formats, err := selectFormats(cfg.Formats, opts.Formats)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		cfg:     cfg,
		root:    project.Dir,
		name:    filepath.Base(project.Dir),
		version: opts.Version,
		out:     opts.OutputDir,
		venv:    opts.VenvDir,
	}
	c.py = c.pythonArgv()

	if cfg.CommandsOnly() {
		// A flat command list owns the whole build; docsmith provides only
		// directories, probes and the environment contract.
		c.mkdirs(nil)
		c.probes()
		for _, cmd := range cfg.Build.Commands {
			c.add(PhaseBuild, cmd, KindShell, shellArgv(cmd), "", "", nil)
		}
	} else {
		c.systemPhase(opts.SkipSystem, formats)
		c.probes()
		c.environmentPhase()
		c.installPhase()
		c.buildPhase(formats)
		c.finalizePhase(formats)
	}

	pl := &Plan{
		Project:    c.name,
		Version:    opts.Version,
		Root:       project.Dir,
		OutputRoot: opts.OutputDir,
		Env:        contractEnv(c.name, opts.Version, project.Dir, opts.OutputDir, c.envDir()),
		Steps:      c.steps,
	}
	for i := range pl.Steps {
		pl.Steps[i].Seq = i + 1
	}
	digest, err := Fingerprint(pl)
	if err != nil {
		return nil, err
	}
	pl.Digest = digest
	return pl, nil
}

// selectFormats intersects the resolved formats with an explicit request.
// "html" may always be requested; it is built unconditionally.
func selectFormats(resolved, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return resolved, nil
	}
	want := make(map[string]bool, len(requested))
	for _, f := range requested {
		if f == "html" {
			continue
		}
		if !slices.Contains(resolved, f) {
			return nil, fmt.Errorf("format %q is not declared in the manifest", f)
		}
		want[f] = true
	}
	var out []string
	for _, f := range resolved {
		if want[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

type compiler struct {
	cfg     *manifest.Config
	root    string
	name    string
	version string
	out     string   // output root, slash-relative to the project
	venv    string   // interpreter env override, slash-relative to the project
	py      []string // python invocation prefix (venv binary or conda run)
	steps   []Step
}

func (c *compiler) add(phase, name, kind string, command []string, dir, format string, env map[string]string) {
	c.steps = append(c.steps, Step{
		Phase:   phase,
		Name:    name,
		Kind:    kind,
		Command: command,
		Dir:     dir,
		Env:     env,
		Format:  format,
	})
}

// hooks appends one shell step per user command.
func (c *compiler) hooks(phase, hook string, cmds []string, format string) {
	for i, cmd := range cmds {
		name := hook
		if len(cmds) > 1 {
			name = fmt.Sprintf("%s %d", hook, i+1)
		}
		c.add(phase, name, KindShell, shellArgv(cmd), "", format, nil)
	}
}

func (c *compiler) systemPhase(skipSystem bool, formats []string) {
	j := c.cfg.Build.Jobs
	c.hooks(PhaseSystem, "pre_checkout", j.PreCheckout, "")
	c.hooks(PhaseSystem, "post_checkout", j.PostCheckout, "")
	c.mkdirs(formats)
	c.hooks(PhaseSystem, "pre_system_dependencies", j.PreSystemDeps, "")
	if len(c.cfg.Build.AptPackages) > 0 && !skipSystem {
		cmd := append([]string{"apt-get", "install", "-y", "--no-install-recommends"},
			c.cfg.Build.AptPackages...)
		c.add(PhaseSystem, "apt-get install", KindExec, cmd, "", "", nil)
	}
	c.hooks(PhaseSystem, "post_system_dependencies", j.PostSystemDeps, "")
}

func (c *compiler) mkdirs(formats []string) {
	dirs := []string{c.out, path.Join(c.out, "html")}
	if !c.cfg.CommandsOnly() {
		dirs = append(dirs, path.Join(c.out, ".doctrees"))
	}
	for _, f := range formats {
		switch f {
		case manifest.FormatHTMLZip:
			dirs = append(dirs, path.Join(c.out, ".htmlzip"), path.Join(c.out, "htmlzip"))
		case manifest.FormatPDF:
			dirs = append(dirs, path.Join(c.out, ".latex"), path.Join(c.out, "pdf"))
		case manifest.FormatEPUB:
			dirs = append(dirs, path.Join(c.out, "epub"))
		}
	}
	c.add(PhaseSystem, "prepare output directories", KindMkdir, dirs, "", "", nil)
}

func (c *compiler) probes() {
	names := make([]string, 0, len(c.cfg.Build.Tools))
	for name := range c.cfg.Build.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.add(PhaseTools, "probe "+name, KindProbe,
			[]string{toolBinaries[name], "--version"}, "", "",
			map[string]string{WantKey: c.cfg.Build.Tools[name]})
	}
	if c.cfg.Conda != nil {
		c.add(PhaseTools, "probe conda", KindProbe, []string{"conda", "--version"}, "", "", nil)
	}
}

func (c *compiler) environmentPhase() {
	j := c.cfg.Build.Jobs
	c.hooks(PhaseEnvironment, "pre_create_environment", j.PreCreateEnv, "")
	switch {
	case len(j.CreateEnv) > 0:
		// The hook replaces environment creation entirely.
		c.hooks(PhaseEnvironment, "create_environment", j.CreateEnv, "")
	case c.cfg.Conda != nil:
		c.add(PhaseEnvironment, "create conda environment", KindExec,
			[]string{"conda", "env", "create", "--quiet",
				"--file", c.cfg.Conda.Environment, "--prefix", c.envDir()},
			"", "", nil)
		c.add(PhaseEnvironment, "upgrade pip", KindExec,
			c.python("-m", "pip", "install", "--upgrade", "--no-cache-dir", "pip", "setuptools"),
			"", "", nil)
	default:
		c.add(PhaseEnvironment, "create virtualenv", KindExec,
			[]string{"python3", "-m", "venv", c.envDir()}, "", "", nil)
		c.add(PhaseEnvironment, "upgrade pip", KindExec,
			c.python("-m", "pip", "install", "--upgrade", "--no-cache-dir", "pip", "setuptools"),
			"", "", nil)
	}
	c.hooks(PhaseEnvironment, "post_create_environment", j.PostCreateEnv, "")
}

func (c *compiler) installPhase() {
	j := c.cfg.Build.Jobs
	c.hooks(PhaseInstall, "pre_install", j.PreInstall, "")
	if len(j.Install) > 0 {
		// The hook replaces the default installs.
		c.hooks(PhaseInstall, "install", j.Install, "")
	} else {
		switch c.cfg.DocTool() {
		case "sphinx":
			c.add(PhaseInstall, "install sphinx", KindExec,
				c.python("-m", "pip", "install", "--upgrade", "--no-cache-dir", "sphinx"),
				"", "", nil)
		case "mkdocs":
			c.add(PhaseInstall, "install mkdocs", KindExec,
				c.python("-m", "pip", "install", "--upgrade", "--no-cache-dir", "mkdocs"),
				"", "", nil)
		}
		for _, in := range c.cfg.Python.Install {
			c.installEntry(in)
		}
	}
	c.hooks(PhaseInstall, "post_install", j.PostInstall, "")
}

func (c *compiler) installEntry(in manifest.Install) {
	if in.Requirements != "" {
		c.add(PhaseInstall, "install "+in.Requirements, KindExec,
			c.python("-m", "pip", "install", "--exists-action=w", "--no-cache-dir", "-r", in.Requirements),
			"", "", nil)
		return
	}
	if in.Method == "setuptools" {
		c.add(PhaseInstall, "install "+in.Path+" (setuptools)", KindExec,
			c.python("setup.py", "install", "--force"), in.Path, "", nil)
		return
	}
	target := in.Path
	if len(in.ExtraRequirements) > 0 {
		target = fmt.Sprintf("%s[%s]", in.Path, strings.Join(in.ExtraRequirements, ","))
	}
	c.add(PhaseInstall, "install "+in.Path, KindExec,
		c.python("-m", "pip", "install", "--upgrade", "--upgrade-strategy", "only-if-needed",
			"--no-cache-dir", target),
		"", "", nil)
}

func (c *compiler) buildPhase(formats []string) {
	j := c.cfg.Build.Jobs
	c.hooks(PhaseBuild, "pre_build", j.PreBuild, "")
	c.formatSteps("html")
	for _, f := range formats {
		c.formatSteps(f)
	}
	c.hooks(PhaseBuild, "post_build", j.PostBuild, "")
}

func (c *compiler) formatSteps(format string) {
	if override, ok := c.cfg.Build.Jobs.Build[format]; ok {
		for i, cmd := range override {
			name := "build " + format
			if len(override) > 1 {
				name = fmt.Sprintf("build %s %d", format, i+1)
			}
			c.add(PhaseBuild, name, KindShell, shellArgv(cmd), "", format, nil)
		}
		return
	}
	switch format {
	case "html":
		if c.cfg.MkDocs != nil {
			cmd := c.python("-m", "mkdocs", "build", "--clean")
			if c.cfg.MkDocs.FailOnWarning {
				cmd = append(cmd, "--strict")
			}
			cmd = append(cmd,
				"--site-dir", path.Join(c.out, "html"),
				"--config-file", c.cfg.MkDocs.Configuration)
			c.add(PhaseBuild, "mkdocs build", KindExec, cmd, "", "html", nil)
			return
		}
		c.add(PhaseBuild, "sphinx "+c.cfg.Sphinx.Builder, KindExec,
			c.sphinx(c.cfg.Sphinx.Builder, "html", path.Join(c.out, "html")), "", "html", nil)
	case manifest.FormatHTMLZip:
		c.add(PhaseBuild, "sphinx singlehtml", KindExec,
			c.sphinx("singlehtml", "htmlzip", path.Join(c.out, ".htmlzip")),
			"", manifest.FormatHTMLZip, nil)
	case manifest.FormatPDF:
		c.add(PhaseBuild, "sphinx latex", KindExec,
			c.sphinx("latex", "pdf", path.Join(c.out, ".latex")), "", manifest.FormatPDF, nil)
		c.add(PhaseBuild, "latexmk", KindExec,
			[]string{"latexmk", "-pdf", "-f", "-dvi-", "-ps-", "-interaction=nonstopmode"},
			path.Join(c.out, ".latex"), manifest.FormatPDF, nil)
	case manifest.FormatEPUB:
		c.add(PhaseBuild, "sphinx epub", KindExec,
			c.sphinx("epub", "epub", path.Join(c.out, "epub")), "", manifest.FormatEPUB, nil)
	}
}

func (c *compiler) finalizePhase(formats []string) {
	for _, f := range formats {
		if _, overridden := c.cfg.Build.Jobs.Build[f]; overridden {
			// Overridden formats own their output; nothing to collect.
			continue
		}
		switch f {
		case manifest.FormatHTMLZip:
			dest := path.Join(c.out, "htmlzip", fmt.Sprintf("%s-%s.zip", c.name, c.version))
			c.add(PhaseFinalize, "archive htmlzip", KindArchive,
				[]string{path.Join(c.out, ".htmlzip"), dest}, "", manifest.FormatHTMLZip, nil)
		case manifest.FormatPDF:
			c.add(PhaseFinalize, "collect pdf", KindShell,
				shellArgv(fmt.Sprintf("cp -f %s/*.pdf %s/",
					path.Join(c.out, ".latex"), path.Join(c.out, "pdf"))),
				"", manifest.FormatPDF, nil)
		}
	}
}

// sphinx builds a sphinx invocation for one builder. Each format keeps its
// own doctree cache so format groups can run concurrently.
func (c *compiler) sphinx(builder, format, outDir string) []string {
	args := []string{"-m", "sphinx", "-T"}
	if c.cfg.Sphinx.FailOnWarning {
		args = append(args, "-W", "--keep-going")
	}
	args = append(args,
		"-b", builder,
		"-d", path.Join(c.out, ".doctrees", format),
		"-D", "language=en",
		path.Dir(c.cfg.Sphinx.Configuration),
		outDir,
	)
	return c.python(args...)
}

// envDir is the absolute interpreter environment directory.
func (c *compiler) envDir() string {
	if c.venv != "" {
		return filepath.Join(c.root, c.venv)
	}
	if c.cfg.Conda != nil {
		return filepath.Join(c.root, c.out, ".conda")
	}
	return filepath.Join(c.root, c.out, ".venv")
}

// pythonArgv is the prefix every python invocation runs through. Absolute,
// so steps with a working directory other than the project root still hit
// the right interpreter.
func (c *compiler) pythonArgv() []string {
	if c.cfg.Conda != nil {
		return []string{"conda", "run", "--prefix", c.envDir(), "python"}
	}
	return []string{filepath.Join(c.envDir(), "bin", "python")}
}

func (c *compiler) python(args ...string) []string {
	return append(append([]string{}, c.py...), args...)
}

func shellArgv(cmd string) []string {
	return []string{"sh", "-c", cmd}
}

// contractEnv is the service-compatible environment exported to every step.
func contractEnv(project, version, root, out, envDir string) map[string]string {
	return map[string]string{
		"READTHEDOCS":                 "True",
		"READTHEDOCS_PROJECT":         project,
		"READTHEDOCS_VERSION":         version,
		"READTHEDOCS_VERSION_TYPE":    "branch",
		"READTHEDOCS_LANGUAGE":        "en",
		"READTHEDOCS_OUTPUT":          filepath.Join(root, out) + "/",
		"READTHEDOCS_VIRTUALENV_PATH": envDir,
		"READTHEDOCS_REPOSITORY_PATH": root,
	}
}
