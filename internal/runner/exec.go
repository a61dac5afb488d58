package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/docsmith/docsmith/internal/plan"
)

// hostEnvBase is the slice of the host environment every step sees. Anything
// else must be named in Options.EnvPassthrough.
var hostEnvBase = []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "TERM"}

// runCommand executes an exec or shell step in its own process group,
// streaming output to the logger and into the step's log tail.
func (r *Runner) runCommand(ctx context.Context, p *plan.Plan, s plan.Step, buildID string, sr *StepResult, slog zerolog.Logger) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.opts.StepTimeout)
	defer cancel()

	t := newTail(LogTailLines)
	stdout := newLineWriter(func(line string) {
		t.Append(line)
		slog.Debug().Str("stream", "stdout").Msg(line)
	})
	stderr := newLineWriter(func(line string) {
		t.Append(line)
		slog.Debug().Str("stream", "stderr").Msg(line)
	})
	defer func() {
		stdout.Flush()
		stderr.Flush()
		sr.LogTail = t.String()
	}()

	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Dir = stepDir(p.Root, s.Dir)
	cmd.Env = r.stepEnv(p, s, buildID)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Own process group so shell pipelines and child processes die with the
	// step on timeout or cancel.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Command[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-stepCtx.Done():
		r.killGroup(cmd.Process.Pid, done, slog)
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("timed out after %s", r.opts.StepTimeout)
		}
		return context.Canceled
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			sr.ExitCode = exitErr.ExitCode()
			return fmt.Errorf("exit code %d", sr.ExitCode)
		}
		return waitErr
	}
	return nil
}

// killGroup terminates a step's process group: SIGTERM first, SIGKILL after
// the grace period if the group is still alive. Waits for the process to be
// reaped either way.
func (r *Runner) killGroup(pid int, done <-chan error, slog zerolog.Logger) {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(r.opts.KillGrace):
		slog.Warn().Int("pid", pid).Msg("process group survived SIGTERM, sending SIGKILL")
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-done
	}
}

// stepEnv assembles the subprocess environment: allowlisted host vars, the
// configured passthrough, the plan's contract, then per-step additions. The
// probe marker key never reaches a subprocess.
func (r *Runner) stepEnv(p *plan.Plan, s plan.Step, buildID string) []string {
	env := make(map[string]string, len(p.Env)+len(s.Env)+8)
	for _, key := range hostEnvBase {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	for _, key := range r.opts.EnvPassthrough {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	for k, v := range p.Env {
		env[k] = v
	}
	for k, v := range s.Env {
		if k == plan.WantKey {
			continue
		}
		env[k] = v
	}
	env[buildIDEnv] = buildID

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// stepDir resolves a step's working directory against the plan root.
func stepDir(root, dir string) string {
	if dir == "" {
		return root
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, filepath.FromSlash(dir))
}

func runMkdir(root string, s plan.Step) error {
	for _, d := range s.Command {
		if err := os.MkdirAll(stepDir(root, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}
