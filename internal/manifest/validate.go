package manifest

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// validateSemantics checks the cross-field rules the structural schema cannot
// express. It runs only on documents the structural layer accepted, so
// enum and pattern checks are not repeated here.
func validateSemantics(f *File) Diagnostics {
	var diags Diagnostics

	if f.Build == nil {
		diags = append(diags, errorf(CodeMissingRequired, "build", "build section is required"))
	} else {
		diags = append(diags, validateBuild(f.Build)...)
	}

	if f.Sphinx != nil && f.MkDocs != nil {
		diags = append(diags, errorf(CodeConflictingKeys, "mkdocs",
			"sphinx and mkdocs are mutually exclusive; declare one documentation tool"))
	}

	diags = append(diags, validateFormats(f.Formats)...)

	if f.Sphinx != nil {
		diags = append(diags, checkProjectRelative("sphinx.configuration", f.Sphinx.Configuration)...)
	}
	if f.MkDocs != nil {
		diags = append(diags, checkProjectRelative("mkdocs.configuration", f.MkDocs.Configuration)...)
	}

	if f.Python != nil {
		diags = append(diags, validateInstalls(f.Python.Install)...)
	}

	if f.Conda != nil {
		diags = append(diags, checkProjectRelative("conda.environment", f.Conda.Environment)...)
	}

	if f.Submodules != nil {
		diags = append(diags, validateSubmodules(f.Submodules)...)
	}

	return diags
}

func validateBuild(b *RawBuild) Diagnostics {
	var diags Diagnostics
	if len(b.Tools) == 0 {
		diags = append(diags, errorf(CodeMissingRequired, "build.tools",
			"build.tools must declare at least one toolchain"))
	}
	if len(b.Commands) > 0 && b.Jobs != nil {
		diags = append(diags, errorf(CodeConflictingKeys, "build.commands",
			"build.commands replaces the whole pipeline and cannot be combined with build.jobs"))
	}
	return diags
}

func validateFormats(fl FormatList) Diagnostics {
	var diags Diagnostics
	seen := make(map[string]bool, len(fl.Items))
	for i, f := range fl.Items {
		if seen[f] {
			diags = append(diags, errorf(CodeInvalidFormat, fmt.Sprintf("formats[%d]", i),
				"duplicate format %q", f))
		}
		seen[f] = true
	}
	return diags
}

func validateInstalls(installs []RawInstall) Diagnostics {
	var diags Diagnostics
	for i, in := range installs {
		field := fmt.Sprintf("python.install[%d]", i)
		switch {
		case in.Requirements != "" && in.Path != "":
			diags = append(diags, errorf(CodeInstallAmbiguous, field,
				"requirements and path are mutually exclusive within one install entry"))
		case in.Requirements == "" && in.Path == "":
			diags = append(diags, errorf(CodeInstallAmbiguous, field,
				"install entry must set either requirements or path"))
		}
		if in.Requirements != "" {
			diags = append(diags, checkProjectRelative(field+".requirements", in.Requirements)...)
		}
		if in.Path != "" {
			diags = append(diags, checkProjectRelative(field+".path", in.Path)...)
		}
		if len(in.ExtraRequirements) > 0 && in.Method == "setuptools" {
			diags = append(diags, errorf(CodeExtrasRequirePip, field+".extra_requirements",
				"extra_requirements needs the pip install method"))
		}
	}
	return diags
}

func validateSubmodules(s *RawSubmodules) Diagnostics {
	var diags Diagnostics
	if !s.Include.IsZero() && !s.Exclude.IsZero() {
		diags = append(diags, errorf(CodeConflictingKeys, "submodules",
			"submodules.include and submodules.exclude are mutually exclusive"))
	}
	for i, p := range s.Include.Paths {
		diags = append(diags, checkProjectRelative(fmt.Sprintf("submodules.include[%d]", i), p)...)
	}
	for i, p := range s.Exclude.Paths {
		diags = append(diags, checkProjectRelative(fmt.Sprintf("submodules.exclude[%d]", i), p)...)
	}
	return diags
}

// checkProjectRelative rejects paths that could escape the project checkout.
// Manifest paths are slash-separated regardless of host OS.
func checkProjectRelative(field, p string) Diagnostics {
	if p == "" {
		return nil
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return Diagnostics{errorf(CodeUnsafePath, field, "path %q must be relative to the project directory", p)}
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return Diagnostics{errorf(CodeUnsafePath, field, "path %q escapes the project directory", p)}
	}
	return nil
}
