package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStable(t *testing.T) {
	p := &Plan{
		Project:    "demo",
		Version:    "latest",
		Root:       "/home/docs/demo",
		OutputRoot: "_readthedocs",
		Env:        map[string]string{"READTHEDOCS": "True"},
		Steps:      []Step{{Seq: 1, Phase: PhaseBuild, Name: "x", Kind: KindExec, Command: []string{"true"}}},
	}

	a, err := Fingerprint(p)
	require.NoError(t, err)
	b, err := Fingerprint(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintIgnoresOwnDigest(t *testing.T) {
	p := &Plan{Project: "demo", Env: map[string]string{}, Steps: []Step{}}

	a, err := Fingerprint(p)
	require.NoError(t, err)

	p.Digest = a
	b, err := Fingerprint(p)
	require.NoError(t, err)
	assert.Equal(t, a, b, "digest field must not feed its own hash")
}

func TestFingerprintSensitive(t *testing.T) {
	p := &Plan{Project: "demo", Env: map[string]string{}, Steps: []Step{}}
	q := &Plan{Project: "demo", Version: "v2", Env: map[string]string{}, Steps: []Step{}}

	a, err := Fingerprint(p)
	require.NoError(t, err)
	b, err := Fingerprint(q)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashWithDomainSeparation(t *testing.T) {
	// The null separator keeps "ab"+"c" and "a"+"bc" apart.
	assert.NotEqual(t,
		hashWithDomain("ab", []byte("c")),
		hashWithDomain("a", []byte("bc")))
}
