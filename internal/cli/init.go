package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/manifest"
)

// Starter manifests written by init. They reference the conventional layout
// (docs/ with the tool entry point); validate tells the user what is still
// missing.
const sphinxStarter = `# Read the Docs configuration, also used by docsmith for local builds.
# See https://docs.readthedocs.io/en/stable/config-file/v2.html
version: 2

build:
  os: ubuntu-24.04
  tools:
    python: "3.12"

sphinx:
  configuration: docs/conf.py

python:
  install:
    - requirements: docs/requirements.txt
`

const mkdocsStarter = `# Read the Docs configuration, also used by docsmith for local builds.
# See https://docs.readthedocs.io/en/stable/config-file/v2.html
version: 2

build:
  os: ubuntu-24.04
  tools:
    python: "3.12"

mkdocs:
  configuration: mkdocs.yml

python:
  install:
    - requirements: docs/requirements.txt
`

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Tool  string
	Force bool
}

// initResult is the JSON payload of a successful init.
type initResult struct {
	Path string `json:"path"`
	Tool string `json:"tool"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter manifest",
		Long: `Write a starter .readthedocs.yaml into a project directory.

Refuses to touch a project that already has a manifest unless --force is
given. The file is written atomically.

Example:
  docsmith init
  docsmith init ./new-project --tool mkdocs`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tool, "tool", "sphinx", "documentation tool (sphinx|mkdocs)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing manifest")

	return cmd
}

func runInit(opts *InitOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var content string
	switch opts.Tool {
	case "sphinx":
		content = sphinxStarter
	case "mkdocs":
		content = mkdocsStarter
	default:
		return formatter.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("unknown tool %q: must be sphinx or mkdocs", opts.Tool), nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("creating %s: %v", dir, err), nil)
	}

	// Overwrite whatever discovery would find, not just the canonical name;
	// otherwise --force could leave two manifests behind.
	path := filepath.Join(dir, manifest.Filenames[0])
	if existing, ok := manifest.Find(dir); ok {
		if !opts.Force {
			return formatter.fail(ExitCommandError, ErrCodeUsage,
				fmt.Sprintf("%s already exists (use --force to overwrite)", existing), nil)
		}
		path = existing
	}

	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return formatter.fail(ExitCommandError, manifest.CodeWriteFailed,
			fmt.Sprintf("writing %s: %v", path, err), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(initResult{Path: path, Tool: opts.Tool})
	}
	fmt.Fprintf(formatter.Writer, "✓ wrote %s (%s)\n", path, opts.Tool)
	fmt.Fprintln(formatter.Writer, "Run 'docsmith validate' once the referenced files exist.")
	return nil
}
