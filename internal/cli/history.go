package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/store"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command with its list and show
// subcommands. Bare "docsmith history" lists.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded builds",
		Long: `Inspect the build history database.

Example:
  docsmith history
  docsmith history list --limit 5
  docsmith history show 01921c2e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "history database path (default from settings)")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", 20, "maximum builds to list")

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List recent builds, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}

	showCmd := &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one build with its step results",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(showCmd)

	return cmd
}

// databasePath resolves the history database for read commands.
func (o *HistoryOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	return o.settingsOrDefault().DatabasePath()
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	path := opts.databasePath()

	// Reading history must not create a database as a side effect.
	if _, err := os.Stat(path); err != nil {
		if formatter.Format == "json" {
			return formatter.Success([]buildView{})
		}
		fmt.Fprintln(formatter.Writer, "No builds recorded.")
		return nil
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeHistory,
			fmt.Sprintf("opening history database %s: %v", path, err), nil)
	}
	defer st.Close()

	builds, err := st.RecentBuilds(context.Background(), opts.Limit)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}

	if formatter.Format == "json" {
		views := make([]buildView, 0, len(builds))
		for i := range builds {
			views = append(views, viewFromRecord(&builds[i]))
		}
		return formatter.Success(views)
	}

	if len(builds) == 0 {
		fmt.Fprintln(formatter.Writer, "No builds recorded.")
		return nil
	}
	w := tabwriter.NewWriter(formatter.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tVERSION\tSTATUS\tSTARTED\tDURATION")
	for _, b := range builds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Project, b.Version, b.Status,
			fmtTimestamp(b.StartedAt), fmtDuration(b.Duration))
	}
	w.Flush()
	return nil
}

func runHistoryShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	path := opts.databasePath()

	if _, err := os.Stat(path); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeHistory,
			fmt.Sprintf("no build history at %s", path), nil)
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeHistory,
			fmt.Sprintf("opening history database %s: %v", path, err), nil)
	}
	defer st.Close()

	b, err := st.GetBuild(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return formatter.fail(ExitCommandError, ErrCodeHistory,
				fmt.Sprintf("build %s not found", id), nil)
		}
		return formatter.fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(viewFromRecord(b))
	}
	printBuildRecord(formatter, b)
	return nil
}

func printBuildRecord(f *OutputFormatter, b *store.Build) {
	fmt.Fprintf(f.Writer, "Build %s\n", b.ID)
	fmt.Fprintf(f.Writer, "  project:  %s\n", b.Project)
	fmt.Fprintf(f.Writer, "  version:  %s\n", b.Version)
	fmt.Fprintf(f.Writer, "  status:   %s\n", b.Status)
	if len(b.Formats) > 0 {
		fmt.Fprintf(f.Writer, "  formats:  %v\n", b.Formats)
	}
	fmt.Fprintf(f.Writer, "  manifest: %s (sha256 %s)\n", b.ManifestPath, shortDigest(b.ManifestDigest))
	fmt.Fprintf(f.Writer, "  plan:     %s\n", shortDigest(b.PlanDigest))
	fmt.Fprintf(f.Writer, "  started:  %s\n", fmtTimestamp(b.StartedAt))
	fmt.Fprintf(f.Writer, "  duration: %s\n", fmtDuration(b.Duration))
	if b.Error != "" {
		fmt.Fprintf(f.Writer, "  error:    %s\n", b.Error)
	}
	fmt.Fprintln(f.Writer)

	w := tabwriter.NewWriter(f.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTATUS\tPHASE\tSTEP\tEXIT\tDURATION")
	for _, st := range b.Steps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			st.Seq, st.Status, st.Phase, st.Name, st.ExitCode, fmtDuration(st.Duration))
	}
	w.Flush()
}

func fmtTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
