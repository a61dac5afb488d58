package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/manifest"
)

// ValidationReport holds validation results.
type ValidationReport struct {
	Valid       bool                  `json:"valid"`
	Manifest    string                `json:"manifest,omitempty"`
	Diagnostics []manifest.Diagnostic `json:"diagnostics,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the project manifest without building",
		Long: `Validate the .readthedocs.yaml manifest in a project directory.

Runs discovery, schema validation, semantic checks and resolution, and
reports every finding with its diagnostic code. Warnings do not affect
the exit code unless --strict is given.

Example:
  docsmith validate
  docsmith validate ./docs-project --strict`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as failures")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, diags := manifest.LoadProject(dir)

	// Problems reaching the manifest are command errors, not verdicts about
	// its content.
	if diags.HasErrors() {
		if first := diags.Errors()[0]; isLoadFailure(first.Code) {
			return formatter.fail(ExitCommandError, first.Code, first.Message, nil)
		}
	}

	manifestRel := relPath(project.Dir, project.ManifestPath)
	failed := diags.HasErrors() || (opts.Strict && len(diags.Warnings()) > 0)
	if !failed {
		return outputValidateSuccess(formatter, manifestRel, diags)
	}
	return outputValidateFailure(formatter, manifestRel, diags)
}

// relPath renders path relative to dir for display, falling back to the
// absolute form.
func relPath(dir, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(dir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func outputValidateSuccess(f *OutputFormatter, manifestRel string, diags manifest.Diagnostics) error {
	if f.Format == "json" {
		return f.Success(ValidationReport{
			Valid:       true,
			Manifest:    manifestRel,
			Diagnostics: diags,
		})
	}

	warnings := diags.Warnings()
	if len(warnings) == 0 {
		fmt.Fprintf(f.Writer, "✓ %s is valid\n", manifestRel)
		return nil
	}
	fmt.Fprintf(f.Writer, "✓ %s is valid (%d warning(s))\n\n", manifestRel, len(warnings))
	for _, d := range warnings {
		fmt.Fprintf(f.Writer, "  %s\n", d.Error())
	}
	return nil
}

func outputValidateFailure(f *OutputFormatter, manifestRel string, diags manifest.Diagnostics) error {
	errCount := len(diags.Errors())
	summary := fmt.Sprintf("validation failed with %d error(s)", errCount)
	if errCount == 0 {
		summary = fmt.Sprintf("validation failed with %d warning(s) (strict)", len(diags.Warnings()))
	}

	if f.Format == "json" {
		first := diags[0]
		if errCount > 0 {
			first = diags.Errors()[0]
		}
		response := CLIResponse{
			Status: "error",
			Data: ValidationReport{
				Valid:       false,
				Manifest:    manifestRel,
				Diagnostics: diags,
			},
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, summary)
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, d := range diags {
		fmt.Fprintf(f.Writer, "  %s\n", d.Error())
	}

	return NewExitError(ExitFailure, summary)
}
