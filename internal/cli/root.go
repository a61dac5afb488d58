package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/log"
	"github.com/docsmith/docsmith/internal/settings"
)

// Version is stamped at release time via -ldflags.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	ProjectDir   string // default project directory when no positional arg is given
	SettingsPath string // explicit settings file; empty means the default location

	// Settings is populated by PersistentPreRunE before any command runs.
	Settings *settings.Settings
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docsmith CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docsmith",
		Short: "Lint and build Read the Docs projects locally",
		Long: `docsmith validates .readthedocs.yaml manifests and runs the build
pipeline they describe on the local machine, without waiting for the hosted
service. It compiles a manifest into a deterministic step plan, executes it,
keeps a build history, and can watch sources or serve the built HTML.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			s, err := settings.Load(opts.SettingsPath)
			if err != nil {
				return err
			}
			opts.Settings = s

			level := s.Log.Level
			if opts.Verbose {
				level = "debug"
			}
			log.Configure(log.Config{Level: level, Format: s.Log.Format})
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ProjectDir, "project-dir", ".", "project directory used when no argument is given")
	cmd.PersistentFlags().StringVar(&opts.SettingsPath, "settings", "", "settings file (default $XDG_CONFIG_HOME/docsmith/settings.toml)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// settingsOrDefault guards commands constructed without the root command,
// where PersistentPreRunE has not run.
func (o *RootOptions) settingsOrDefault() *settings.Settings {
	if o.Settings != nil {
		return o.Settings
	}
	return settings.Default()
}

// resolveDir picks the project directory: the positional argument wins over
// --project-dir, which defaults to the current directory.
func resolveDir(opts *RootOptions, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if opts.ProjectDir != "" {
		return opts.ProjectDir
	}
	return "."
}
