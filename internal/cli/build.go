package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/log"
	"github.com/docsmith/docsmith/internal/plan"
	"github.com/docsmith/docsmith/internal/runner"
	"github.com/docsmith/docsmith/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Version     string
	Formats     []string
	SkipSystem  bool
	StrictTools bool
	Database    string
	NoHistory   bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Run the build pipeline locally",
		Long: `Compile the manifest into a plan and execute it on this machine.

Steps run in phase order with the documented environment contract; distinct
output formats build concurrently. The outcome is recorded in the build
history unless --no-history is given. Interrupting the build (Ctrl-C) stops
the running step and records the build as canceled.

Example:
  docsmith build
  docsmith build ./docs-project --formats pdf --version v1.2
  docsmith build --strict-tools --db /tmp/history.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "latest", "document version label")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "build only this subset of the declared formats")
	cmd.Flags().BoolVar(&opts.SkipSystem, "skip-system", false, "skip apt-get steps")
	cmd.Flags().BoolVar(&opts.StrictTools, "strict-tools", false, "failed toolchain probes abort the build")
	cmd.Flags().StringVar(&opts.Database, "db", "", "history database path (default from settings)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record this build")

	return cmd
}

func runBuild(opts *BuildOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, diags, err := loadProject(formatter, dir)
	if err != nil {
		return err
	}
	reportWarnings(formatter, diags)

	s := opts.settingsOrDefault()
	pl, err := plan.Compile(project, compileOptions(s, opts.Version, opts.Formats, opts.SkipSystem))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}

	// Open the history first so a broken --db fails before a long build, not
	// after it.
	var st *store.Store
	if !opts.NoHistory {
		path := opts.Database
		if path == "" {
			path = s.DatabasePath()
		}
		if parent := filepath.Dir(path); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return formatter.fail(ExitCommandError, ErrCodeHistory,
					fmt.Sprintf("creating history directory: %v", err), nil)
			}
		}
		st, err = store.Open(path)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeHistory,
				fmt.Sprintf("opening history database %s: %v", path, err), nil)
		}
		defer st.Close()
	}

	r := runner.New(runner.Options{
		StepTimeout:     s.Build.StepTimeout.Std(),
		StrictTools:     opts.StrictTools || s.Build.StrictTools,
		ParallelFormats: s.Build.ParallelFormats,
		EnvPassthrough:  s.Build.EnvPassthrough,
	})

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := r.Run(ctx, pl)

	manifestRel := relPath(project.Dir, project.ManifestPath)
	if st != nil {
		recordBuild(st, historyRecord(manifestRel, project.Digest, pl, res), s.History.Keep)
	}

	return outputBuildResult(formatter, viewFromResult(res, manifestRel, planFormats(pl)), res)
}

// recordBuild writes the outcome to the history with a fresh context: a
// canceled build still belongs in the record. Failures are logged, not
// fatal; the build result stands on its own.
func recordBuild(st *store.Store, b *store.Build, keep int) {
	logger := log.WithComponent("cli")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := st.RecordBuild(ctx, b); err != nil {
		logger.Warn().Err(err).Str("build_id", b.ID).Msg("recording build history failed")
		return
	}
	if keep > 0 {
		if _, err := st.Prune(ctx, keep); err != nil {
			logger.Warn().Err(err).Msg("pruning build history failed")
		}
	}
}

// historyRecord converts a build result into its store row.
func historyRecord(manifestRel, manifestDigest string, pl *plan.Plan, res *runner.BuildResult) *store.Build {
	b := &store.Build{
		ID:             res.ID,
		Project:        res.Project,
		ManifestPath:   manifestRel,
		ManifestDigest: manifestDigest,
		PlanDigest:     res.PlanDigest,
		Version:        res.Version,
		Formats:        planFormats(pl),
		Status:         string(res.Status),
		Error:          res.Error,
		StartedAt:      res.Started,
		Duration:       res.Duration,
	}
	for _, sr := range res.Steps {
		b.Steps = append(b.Steps, store.Step{
			BuildID:   res.ID,
			Seq:       sr.Seq,
			Phase:     sr.Phase,
			Name:      sr.Name,
			Kind:      sr.Kind,
			Command:   sr.Command,
			Status:    string(sr.Status),
			ExitCode:  sr.ExitCode,
			StartedAt: sr.Started,
			Duration:  sr.Duration,
			LogTail:   sr.LogTail,
		})
	}
	return b
}

// planFormats lists the output formats the plan builds, in step order.
func planFormats(pl *plan.Plan) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range pl.Steps {
		if s.Format != "" && !seen[s.Format] {
			seen[s.Format] = true
			out = append(out, s.Format)
		}
	}
	return out
}

func outputBuildResult(f *OutputFormatter, view buildView, res *runner.BuildResult) error {
	if f.Format == "json" {
		if res.Status == runner.StatusSucceeded {
			return f.Success(view)
		}
		response := CLIResponse{
			Status: "error",
			Data:   view,
			Error:  &CLIError{Code: ErrCodeBuild, Message: res.Error},
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("build %s: %s", res.Status, res.Error))
	}

	printStepTable(f, res.Steps)
	fmt.Fprintln(f.Writer)

	switch res.Status {
	case runner.StatusSucceeded:
		fmt.Fprintf(f.Writer, "✓ build %s succeeded in %s\n", res.ID, fmtDuration(res.Duration))
		return nil
	case runner.StatusCanceled:
		fmt.Fprintf(f.Writer, "✗ build %s canceled after %s\n", res.ID, fmtDuration(res.Duration))
	default:
		printFailedTails(f, res.Steps)
		fmt.Fprintf(f.Writer, "✗ build %s failed after %s: %s\n", res.ID, fmtDuration(res.Duration), res.Error)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("build %s: %s", res.Status, res.Error))
}

func printStepTable(f *OutputFormatter, steps []runner.StepResult) {
	w := tabwriter.NewWriter(f.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTATUS\tPHASE\tSTEP\tDURATION")
	for _, sr := range steps {
		dur := ""
		if sr.Status != runner.StatusSkipped {
			dur = fmtDuration(sr.Duration)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", sr.Seq, sr.Status, sr.Phase, sr.Name, dur)
	}
	w.Flush()
}

// printFailedTails shows the captured output of failed steps, which is
// usually the only part of a long build anyone needs to read.
func printFailedTails(f *OutputFormatter, steps []runner.StepResult) {
	for _, sr := range steps {
		if sr.Status != runner.StatusFailed || sr.LogTail == "" {
			continue
		}
		fmt.Fprintf(f.Writer, "--- log: step %d (%s) ---\n", sr.Seq, sr.Name)
		fmt.Fprintln(f.Writer, strings.TrimRight(sr.LogTail, "\n"))
		fmt.Fprintln(f.Writer)
	}
}

func fmtDuration(d time.Duration) string {
	if d >= time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Millisecond).String()
}
