package plan

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/docsmith/docsmith/internal/manifest"
)

// The golden file pins the serialized plan shape that "docsmith plan
// --format json" emits and the digest is computed from. The digest field is
// excluded; its stability has its own tests.
func TestPlanGoldenCommandsOnly(t *testing.T) {
	cfg := &manifest.Config{
		Version: 2,
		Build: manifest.Build{
			OS:    "ubuntu-24.04",
			Tools: map[string]string{"python": "3.12"},
			Commands: []string{
				"pip install -r docs/requirements.txt",
				"sphinx-build -b html docs _readthedocs/html",
			},
		},
	}
	p := compileFor(t, cfg, CompileOptions{})

	shadow := *p
	shadow.Digest = ""
	out, err := json.MarshalIndent(&shadow, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "plan_commands_only", append(out, '\n'))
}
