package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/docsmith/docsmith/internal/manifest"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Raw bool
}

// resolvedView is the JSON payload of show: the resolved configuration plus
// enough identity to tie it back to the manifest on disk.
type resolvedView struct {
	Manifest string           `json:"manifest"`
	Digest   string           `json:"digest"`
	Config   *manifest.Config `json:"config"`
}

// rawView is the JSON payload of show --raw.
type rawView struct {
	Manifest string `json:"manifest"`
	Raw      string `json:"raw"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Print the resolved configuration",
		Long: `Print the fully resolved configuration for a project: every default
applied and every referenced file located. Text output is YAML; --format json
wraps the same structure in the standard envelope. --raw prints the manifest
exactly as authored, before any resolution.

Example:
  docsmith show
  docsmith show --format json | jq .data.config.formats`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the manifest as authored, without resolution")

	return cmd
}

func runShow(opts *ShowOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Raw {
		return runShowRaw(formatter, dir)
	}

	project, diags, err := loadProject(formatter, dir)
	if err != nil {
		return err
	}
	reportWarnings(formatter, diags)

	manifestRel := relPath(project.Dir, project.ManifestPath)
	if formatter.Format == "json" {
		return formatter.Success(resolvedView{
			Manifest: manifestRel,
			Digest:   project.Digest,
			Config:   project.Config,
		})
	}

	out, err := renderYAML(project.Config)
	if err != nil {
		return formatter.fail(ExitCommandError, manifest.CodeGeneric,
			fmt.Sprintf("rendering configuration: %v", err), nil)
	}
	_, err = formatter.Writer.Write(out)
	return err
}

func runShowRaw(f *OutputFormatter, dir string) error {
	path, ok := manifest.Find(dir)
	if !ok {
		return f.fail(ExitCommandError, manifest.CodeNotFound,
			fmt.Sprintf("no manifest in %s", dir), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f.fail(ExitCommandError, manifest.CodeReadFailed,
			fmt.Sprintf("reading %s: %v", path, err), nil)
	}

	if f.Format == "json" {
		return f.Success(rawView{Manifest: relPath(dir, path), Raw: string(data)})
	}
	_, err = f.Writer.Write(data)
	return err
}

// renderYAML marshals v as YAML with its canonical JSON key names. The
// resolved config carries JSON tags only, so a direct yaml.Marshal would
// invent different key spellings; round-tripping through JSON keeps the two
// output formats aligned. Map keys come out sorted, which also makes the
// output stable.
func renderYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}
