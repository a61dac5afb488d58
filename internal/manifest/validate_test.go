package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticsValid(t *testing.T) {
	f := baseFile()
	f.Sphinx = &RawSphinx{Configuration: "docs/conf.py"}

	assert.Empty(t, validateSemantics(f))
}

func TestSemanticsMissingBuild(t *testing.T) {
	f := baseFile()
	f.Build = nil

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeMissingRequired, diags[0].Code)
	assert.Equal(t, "build", diags[0].Field)
}

func TestSemanticsNoTools(t *testing.T) {
	f := baseFile()
	f.Build.Tools = nil

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeMissingRequired, diags[0].Code)
	assert.Equal(t, "build.tools", diags[0].Field)
}

func TestSemanticsSphinxAndMkDocsConflict(t *testing.T) {
	f := baseFile()
	f.Sphinx = &RawSphinx{}
	f.MkDocs = &RawMkDocs{}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeConflictingKeys, diags[0].Code)
}

func TestSemanticsCommandsAndJobsConflict(t *testing.T) {
	f := baseFile()
	f.Build.Commands = []string{"make docs"}
	f.Build.Jobs = &RawJobs{PostBuild: []string{"ls"}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeConflictingKeys, diags[0].Code)
	assert.Equal(t, "build.commands", diags[0].Field)
}

func TestSemanticsSubmoduleIncludeExcludeConflict(t *testing.T) {
	f := baseFile()
	f.Submodules = &RawSubmodules{
		Include: PathSelector{Paths: []string{"a"}},
		Exclude: PathSelector{Paths: []string{"b"}},
	}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeConflictingKeys, diags[0].Code)
	assert.Equal(t, "submodules", diags[0].Field)
}

func TestSemanticsDuplicateFormats(t *testing.T) {
	f := baseFile()
	f.Formats = FormatList{Items: []string{"pdf", "pdf"}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeInvalidFormat, diags[0].Code)
	assert.Equal(t, "formats[1]", diags[0].Field)
}

func TestSemanticsInstallBothSet(t *testing.T) {
	f := baseFile()
	f.Python = &RawPython{Install: []RawInstall{{Requirements: "r.txt", Path: "."}}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeInstallAmbiguous, diags[0].Code)
}

func TestSemanticsInstallNeitherSet(t *testing.T) {
	f := baseFile()
	f.Python = &RawPython{Install: []RawInstall{{Method: "pip"}}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeInstallAmbiguous, diags[0].Code)
}

func TestSemanticsExtrasNeedPip(t *testing.T) {
	f := baseFile()
	f.Python = &RawPython{Install: []RawInstall{{
		Path:              ".",
		Method:            "setuptools",
		ExtraRequirements: []string{"docs"},
	}}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeExtrasRequirePip, diags[0].Code)
}

func TestSemanticsExtrasWithDefaultMethod(t *testing.T) {
	f := baseFile()
	f.Python = &RawPython{Install: []RawInstall{{
		Path:              ".",
		ExtraRequirements: []string{"docs"}, // Method defaults to pip later.
	}}}

	assert.Empty(t, validateSemantics(f))
}

func TestSemanticsAbsolutePath(t *testing.T) {
	f := baseFile()
	f.Sphinx = &RawSphinx{Configuration: "/etc/passwd"}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnsafePath, diags[0].Code)
	assert.Equal(t, "sphinx.configuration", diags[0].Field)
}

func TestSemanticsEscapingPath(t *testing.T) {
	f := baseFile()
	f.Python = &RawPython{Install: []RawInstall{{Requirements: "../secrets.txt"}}}

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnsafePath, diags[0].Code)
}

func TestSemanticsSneakyEscapingPath(t *testing.T) {
	f := baseFile()
	f.Conda = &RawConda{Environment: "docs/../../env.yml"} // Cleans to ../env.yml

	diags := validateSemantics(f)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnsafePath, diags[0].Code)
}

func TestSemanticsInternalDotDotAllowed(t *testing.T) {
	f := baseFile()
	f.Sphinx = &RawSphinx{Configuration: "docs/../conf.py"} // Cleans to conf.py

	assert.Empty(t, validateSemantics(f))
}

func TestSemanticsCollectsAllErrors(t *testing.T) {
	f := baseFile()
	f.Build.Tools = nil
	f.Sphinx = &RawSphinx{}
	f.MkDocs = &RawMkDocs{}
	f.Python = &RawPython{Install: []RawInstall{{Requirements: "r.txt", Path: "."}}}

	diags := validateSemantics(f)
	assert.GreaterOrEqual(t, len(diags), 3, "should collect every finding")

	codes := make(map[string]bool)
	for _, d := range diags {
		codes[d.Code] = true
	}
	assert.True(t, codes[CodeMissingRequired])
	assert.True(t, codes[CodeConflictingKeys])
	assert.True(t, codes[CodeInstallAmbiguous])
}
