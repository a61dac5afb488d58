package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/plan"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Version string
	Formats []string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [dir]",
		Short: "Show the build plan without running it",
		Long: `Compile the manifest into its deterministic step plan and print it.

The plan lists every step the build would run, in order, with the exact
command lines. The digest identifies the plan: same manifest, same flags,
same digest.

Example:
  docsmith plan
  docsmith plan --formats pdf --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "latest", "document version label")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "build only this subset of the declared formats")

	return cmd
}

func runPlan(opts *PlanOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, diags, err := loadProject(formatter, dir)
	if err != nil {
		return err
	}
	reportWarnings(formatter, diags)

	s := opts.settingsOrDefault()
	pl, err := plan.Compile(project, compileOptions(s, opts.Version, opts.Formats, false))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(pl)
	}
	printPlan(formatter, pl)
	return nil
}

func printPlan(f *OutputFormatter, pl *plan.Plan) {
	fmt.Fprintf(f.Writer, "Plan for %s (version %s)\n", pl.Project, pl.Version)
	fmt.Fprintf(f.Writer, "  digest: %s\n", pl.Digest)
	fmt.Fprintf(f.Writer, "  output: %s\n", pl.OutputRoot)
	fmt.Fprintln(f.Writer)

	w := tabwriter.NewWriter(f.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tPHASE\tKIND\tFORMAT\tSTEP\tCOMMAND")
	for _, s := range pl.Steps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Seq, s.Phase, s.Kind, s.Format, s.Name, strings.Join(s.Command, " "))
	}
	w.Flush()
}
