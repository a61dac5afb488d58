package cli

import (
	"github.com/docsmith/docsmith/internal/manifest"
	"github.com/docsmith/docsmith/internal/plan"
	"github.com/docsmith/docsmith/internal/settings"
)

// loadProject runs manifest discovery, decoding, validation and resolution
// for dir, reporting failures through the formatter. A missing or unreadable
// manifest is a command error; manifest content problems are validation
// failures. Warnings ride along with the project for the caller to surface.
func loadProject(f *OutputFormatter, dir string) (*manifest.Project, manifest.Diagnostics, error) {
	project, diags := manifest.LoadProject(dir)
	if !diags.HasErrors() {
		return project, diags, nil
	}

	first := diags.Errors()[0]
	msg := first.Message
	if first.Field != "" {
		msg = first.Field + ": " + first.Message
	}
	exit := ExitFailure
	if isLoadFailure(first.Code) {
		exit = ExitCommandError
	}
	return nil, diags, f.fail(exit, first.Code, msg, diags)
}

// isLoadFailure reports whether a diagnostic code describes a problem with
// reaching the manifest rather than with its content.
func isLoadFailure(code string) bool {
	switch code {
	case manifest.CodeGeneric, manifest.CodeNotFound, manifest.CodeReadFailed:
		return true
	}
	return false
}

// reportWarnings surfaces non-fatal findings on the diagnostic stream so
// they never disturb the primary output.
func reportWarnings(f *OutputFormatter, diags manifest.Diagnostics) {
	for _, d := range diags.Warnings() {
		f.VerboseLog("warning %s", d.Error())
	}
}

// compileOptions merges settings with per-command flags into plan options.
func compileOptions(s *settings.Settings, version string, formats []string, skipSystem bool) plan.CompileOptions {
	return plan.CompileOptions{
		Version:    version,
		OutputDir:  s.Build.OutputDir,
		VenvDir:    s.Build.VenvDir,
		SkipSystem: skipSystem || s.Build.SkipSystemPackages,
		Formats:    formats,
	}
}
