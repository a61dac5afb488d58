package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsmith/docsmith/internal/preview"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve the built HTML locally",
		Long: `Serve the built documentation from <output>/html over HTTP.

The server is read-only and local: GET and HEAD only, with traversal and
symlink escapes rejected. /healthz reports liveness and /metrics exposes
Prometheus metrics.

Example:
  docsmith serve
  docsmith serve ./docs-project --addr :9000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, resolveDir(opts.RootOptions, args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from settings)")

	return cmd
}

func runServe(opts *ServeOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s := opts.settingsOrDefault()
	addr := opts.Addr
	if addr == "" {
		addr = s.Serve.Addr
	}

	root, err := filepath.Abs(filepath.Join(dir, s.Build.OutputDir, "html"))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("resolving %s: %v", dir, err), nil)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := preview.New(preview.Config{Addr: addr, Root: root, Version: Version})
	fmt.Fprintf(formatter.Writer, "Serving %s on %s (Ctrl-C to stop)\n", root, serveURL(addr))
	if err := srv.Run(ctx); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeServe, err.Error(), nil)
	}
	return nil
}

// serveURL renders a listen address as something clickable.
func serveURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
