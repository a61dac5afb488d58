package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docsmith/docsmith/internal/plan"
)

// runProbe checks that a toolchain binary answers --version and that its
// output mentions the version the manifest asked for. Mismatches and missing
// binaries are warnings unless StrictTools is set; docsmith never installs
// toolchains itself.
func (r *Runner) runProbe(ctx context.Context, s plan.Step, sr *StepResult, slog zerolog.Logger) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, s.Command[0], s.Command[1:]...).CombinedOutput()
	reported := strings.TrimSpace(string(out))
	sr.LogTail = reported
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		msg := fmt.Sprintf("%s not available: %v", s.Command[0], err)
		sr.LogTail = msg
		if r.opts.StrictTools {
			return errors.New(msg)
		}
		slog.Warn().Str("event", "probe.missing").Msg(msg)
		return nil
	}

	want := s.Env[plan.WantKey]
	if concreteVersion(want) && !strings.Contains(reported, want) {
		msg := fmt.Sprintf("%s reports %q, manifest wants %s", s.Command[0], reported, want)
		sr.LogTail = msg
		if r.opts.StrictTools {
			return errors.New(msg)
		}
		slog.Warn().Str("event", "probe.mismatch").Msg(msg)
	}
	return nil
}

// concreteVersion reports whether a manifest tool version can be compared
// against probe output. Labels like "latest", "system" or "miniconda3-4.7"
// never match a --version string, so they are not checked.
func concreteVersion(want string) bool {
	return want != "" && want[0] >= '0' && want[0] <= '9'
}
