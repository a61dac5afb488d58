package plan

// Phases in canonical execution order. The runner treats phase boundaries as
// barriers; only build steps of distinct formats run concurrently.
const (
	PhaseSystem      = "system"
	PhaseTools       = "tools"
	PhaseEnvironment = "environment"
	PhaseInstall     = "install"
	PhaseBuild       = "build"
	PhaseFinalize    = "finalize"
)

// Step kinds.
const (
	// KindExec runs Command as an argv vector.
	KindExec = "exec"
	// KindShell runs a user-authored command through the shell; Command is
	// the full argv including the shell.
	KindShell = "shell"
	// KindProbe checks a toolchain binary; Command is `<bin> --version` and
	// the expected version rides in Env under WantKey.
	KindProbe = "probe"
	// KindArchive zips a directory in-process; Command is [src, dest].
	KindArchive = "archive"
	// KindMkdir creates the directories listed in Command.
	KindMkdir = "mkdir"
)

// WantKey is the Env key probe steps use to carry the toolchain version the
// manifest asked for. The runner strips it before spawning.
const WantKey = "DOCSMITH_WANT"

// DefaultOutputDir is the output root relative to the project directory.
const DefaultOutputDir = "_readthedocs"

// Step is one unit of work. Paths in Command and Dir are slash-relative to
// the project root; the runner resolves them. Env holds per-step additions
// on top of the plan's environment contract.
type Step struct {
	Seq     int               `json:"seq"`
	Phase   string            `json:"phase"`
	Name    string            `json:"name"`
	Kind    string            `json:"kind"`
	Command []string          `json:"command,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Format  string            `json:"format,omitempty"`
}

// Plan is a compiled build. Env is the environment contract exported to
// every step; the runner adds the allowlisted host base and the build ID.
type Plan struct {
	Project    string            `json:"project"`
	Version    string            `json:"version"`
	Root       string            `json:"root"`
	OutputRoot string            `json:"output_root"`
	Env        map[string]string `json:"env"`
	Steps      []Step            `json:"steps"`
	Digest     string            `json:"digest,omitempty"`
}

// BuildSteps returns the build-phase steps grouped by format, preserving
// step order inside each group. Steps without a format (hooks) are returned
// separately as pre and post, split around the format groups.
func (p *Plan) BuildSteps() (pre []Step, groups map[string][]Step, post []Step) {
	groups = make(map[string][]Step)
	seenFormat := false
	for _, s := range p.Steps {
		if s.Phase != PhaseBuild {
			continue
		}
		if s.Format == "" {
			if seenFormat {
				post = append(post, s)
			} else {
				pre = append(pre, s)
			}
			continue
		}
		seenFormat = true
		groups[s.Format] = append(groups[s.Format], s)
	}
	return pre, groups, post
}
