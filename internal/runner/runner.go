package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/docsmith/docsmith/internal/log"
	"github.com/docsmith/docsmith/internal/plan"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultStepTimeout     = 30 * time.Minute
	DefaultParallelFormats = 2

	defaultKillGrace = 5 * time.Second
	probeTimeout     = 30 * time.Second
)

// buildIDEnv carries the build ID into every step's environment.
const buildIDEnv = "DOCSMITH_BUILD_ID"

// Options tune plan execution.
type Options struct {
	StepTimeout     time.Duration // wall-clock limit per step
	KillGrace       time.Duration // SIGTERM to SIGKILL gap on timeout or cancel
	StrictTools     bool          // failed or mismatched toolchain probes abort the build
	ParallelFormats int           // concurrent per-format build groups
	EnvPassthrough  []string      // extra host env vars visible to steps
}

// Runner executes plans.
type Runner struct {
	opts Options
	log  zerolog.Logger
}

// New returns a Runner with defaults filled in.
func New(opts Options) *Runner {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	if opts.ParallelFormats < 1 {
		opts.ParallelFormats = DefaultParallelFormats
	}
	return &Runner{opts: opts, log: log.WithComponent("runner")}
}

// Run executes every step of the plan and always returns a result; inspect
// Status for the outcome. The first failing step aborts the run and the
// remaining steps are recorded as skipped.
func (r *Runner) Run(ctx context.Context, p *plan.Plan) *BuildResult {
	res := &BuildResult{
		ID:         NewBuildID(),
		Project:    p.Project,
		Version:    p.Version,
		PlanDigest: p.Digest,
		Status:     StatusSucceeded,
		Started:    time.Now(),
		Steps:      make([]StepResult, len(p.Steps)),
	}
	for i, s := range p.Steps {
		res.Steps[i] = StepResult{
			Seq: s.Seq, Phase: s.Phase, Name: s.Name, Kind: s.Kind,
			Command: s.Command, Status: StatusSkipped,
		}
	}

	logger := r.log.With().
		Str("build_id", res.ID).
		Str("project", p.Project).
		Str("version", p.Version).
		Logger()
	logger.Info().
		Str("event", "build.start").
		Str("plan_digest", p.Digest).
		Int("steps", len(p.Steps)).
		Msg("build started")

	err := r.execute(ctx, p, res, logger)
	res.Duration = time.Since(res.Started)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			res.Status = StatusCanceled
		} else {
			res.Status = StatusFailed
		}
		res.Error = err.Error()
	}

	buildsTotal.WithLabelValues(string(res.Status)).Inc()
	buildDuration.Observe(res.Duration.Seconds())

	evt := logger.Info()
	if res.Status == StatusFailed {
		evt = logger.Error()
	}
	evt.Str("event", "build.finish").
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Msg("build finished")
	return res
}

// execute walks the plan in order. The build phase is handed off wholesale so
// its format groups can run concurrently; every other step runs sequentially.
func (r *Runner) execute(ctx context.Context, p *plan.Plan, res *BuildResult, logger zerolog.Logger) error {
	buildDone := false
	for _, s := range p.Steps {
		if s.Phase == plan.PhaseBuild {
			if !buildDone {
				if err := r.buildPhase(ctx, p, res, logger); err != nil {
					return err
				}
				buildDone = true
			}
			continue
		}
		if err := r.runInto(ctx, p, s, res, logger); err != nil {
			return err
		}
	}
	return nil
}

// buildPhase runs pre-build hooks, then one goroutine per format group
// bounded by ParallelFormats, then post-build hooks. Groups write disjoint
// result slots, so no locking is needed around res.Steps.
func (r *Runner) buildPhase(ctx context.Context, p *plan.Plan, res *BuildResult, logger zerolog.Logger) error {
	pre, groups, post := p.BuildSteps()
	for _, s := range pre {
		if err := r.runInto(ctx, p, s, res, logger); err != nil {
			return err
		}
	}

	formats := make([]string, 0, len(groups))
	for f := range groups {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ParallelFormats)
	for _, f := range formats {
		steps := groups[f]
		g.Go(func() error {
			for _, s := range steps {
				if err := r.runInto(gctx, p, s, res, logger); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range post {
		if err := r.runInto(ctx, p, s, res, logger); err != nil {
			return err
		}
	}
	return nil
}

// runInto executes one step and stores its result in the build slot.
func (r *Runner) runInto(ctx context.Context, p *plan.Plan, s plan.Step, res *BuildResult, logger zerolog.Logger) error {
	sr, err := r.runStep(ctx, p, s, res.ID, logger)
	if s.Seq >= 1 && s.Seq <= len(res.Steps) {
		res.Steps[s.Seq-1] = sr
	}
	return err
}

func (r *Runner) runStep(ctx context.Context, p *plan.Plan, s plan.Step, buildID string, logger zerolog.Logger) (StepResult, error) {
	sr := StepResult{
		Seq: s.Seq, Phase: s.Phase, Name: s.Name, Kind: s.Kind,
		Command: s.Command, Status: StatusSucceeded, Started: time.Now(),
	}
	slog := logger.With().
		Int("seq", s.Seq).
		Str("phase", s.Phase).
		Str("step", s.Name).
		Logger()
	slog.Info().Str("event", "step.start").Strs("command", s.Command).Msg("step started")

	var err error
	switch s.Kind {
	case plan.KindMkdir:
		err = runMkdir(p.Root, s)
	case plan.KindArchive:
		err = runArchive(p.Root, s)
	case plan.KindProbe:
		err = r.runProbe(ctx, s, &sr, slog)
	default:
		err = r.runCommand(ctx, p, s, buildID, &sr, slog)
	}
	sr.Duration = time.Since(sr.Started)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			sr.Status = StatusCanceled
		} else {
			sr.Status = StatusFailed
		}
		err = fmt.Errorf("step %d (%s): %w", s.Seq, s.Name, err)
	}
	stepsTotal.WithLabelValues(s.Phase, string(sr.Status)).Inc()

	evt := slog.Info()
	if sr.Status == StatusFailed {
		evt = slog.Error()
	}
	evt.Str("event", "step.finish").
		Str("status", string(sr.Status)).
		Int("exit_code", sr.ExitCode).
		Dur("duration", sr.Duration).
		Msg("step finished")
	return sr, err
}
