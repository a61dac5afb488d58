package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/docsmith/docsmith/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		// ExitErrors were already reported through the command's formatter;
		// anything else (flag parsing, settings loading) has not been printed.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "docsmith: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
