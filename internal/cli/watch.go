package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/log"
	"github.com/docsmith/docsmith/internal/manifest"
	"github.com/docsmith/docsmith/internal/plan"
	"github.com/docsmith/docsmith/internal/runner"
	"github.com/docsmith/docsmith/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Version     string
	Formats     []string
	SkipSystem  bool
	StrictTools bool
	Debounce    time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rebuild whenever project files change",
		Long: `Build once, then watch the project tree and rebuild on changes.

Editor save bursts collapse into one rebuild; changes arriving during a
build queue exactly one follow-up. Manifest edits are revalidated, and a
broken manifest is reported without stopping the watch. Builds are not
recorded in the history. Watch output is interactive text regardless of
--format.

Example:
  docsmith watch
  docsmith watch ./docs-project --formats pdf`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "latest", "document version label")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "build only this subset of the declared formats")
	cmd.Flags().BoolVar(&opts.SkipSystem, "skip-system", false, "skip apt-get steps")
	cmd.Flags().BoolVar(&opts.StrictTools, "strict-tools", false, "failed toolchain probes abort the build")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period after the last change")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := log.WithComponent("cli")

	root, err := filepath.Abs(dir)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("resolving %s: %v", dir, err), nil)
	}

	s := opts.settingsOrDefault()
	copts := compileOptions(s, opts.Version, opts.Formats, opts.SkipSystem)
	r := runner.New(runner.Options{
		StepTimeout:     s.Build.StepTimeout.Std(),
		StrictTools:     opts.StrictTools || s.Build.StrictTools,
		ParallelFormats: s.Build.ParallelFormats,
		EnvPassthrough:  s.Build.EnvPassthrough,
	})

	rebuild := func(ctx context.Context, paths []string) {
		if len(paths) > 0 {
			logger.Info().Strs("paths", paths).Msg("source changed, rebuilding")
		}

		project, diags := manifest.LoadProject(root)
		for _, d := range diags.Warnings() {
			logger.Warn().Str("code", d.Code).Msg(d.Error())
		}
		if diags.HasErrors() {
			for _, d := range diags.Errors() {
				logger.Error().Str("code", d.Code).Msg(d.Error())
			}
			fmt.Fprintln(formatter.Writer, "✗ manifest invalid; waiting for changes")
			return
		}

		pl, err := plan.Compile(project, copts)
		if err != nil {
			logger.Error().Err(err).Msg("plan compilation failed")
			fmt.Fprintf(formatter.Writer, "✗ plan failed: %v\n", err)
			return
		}

		res := r.Run(ctx, pl)
		switch res.Status {
		case runner.StatusSucceeded:
			fmt.Fprintf(formatter.Writer, "✓ build succeeded in %s\n", fmtDuration(res.Duration))
		case runner.StatusCanceled:
			// Shutting down; Run's own logging covers it.
		default:
			fmt.Fprintf(formatter.Writer, "✗ build failed: %s\n", res.Error)
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exclude := []string{filepath.ToSlash(s.Build.OutputDir)}
	if s.Build.VenvDir != "" {
		exclude = append(exclude, filepath.ToSlash(s.Build.VenvDir))
	}
	w, err := watch.New(watch.Config{
		Root:     root,
		Debounce: opts.Debounce,
		Exclude:  exclude,
		OnChange: rebuild,
	})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}

	fmt.Fprintf(formatter.Writer, "Watching %s (Ctrl-C to stop)\n", root)
	rebuild(ctx, nil)

	if err := w.Run(ctx); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}
	fmt.Fprintln(formatter.Writer, "Watch stopped.")
	return nil
}
