package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorMessage(t *testing.T) {
	err := NewExitError(ExitFailure, "validation failed")
	assert.Equal(t, "validation failed", err.Error())
	assert.Equal(t, ExitFailure, err.Code)

	wrapped := WrapExitError(ExitCommandError, "opening database", errors.New("locked"))
	assert.Equal(t, "opening database: locked", wrapped.Error())
	assert.Equal(t, "locked", wrapped.Unwrap().Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	// Wrapped ExitErrors still carry their code.
	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitFailure, "inner"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))

	// Errors that never went through a command count as command errors.
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag")))
}

func TestFormatterSuccessText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestFormatterSuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"steps": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatterErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error("E002", "no manifest found", nil))
	assert.Contains(t, buf.String(), "Error [E002]: no manifest found")
}

func TestFormatterErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("E301", "build failed", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E301", resp.Error.Code)
	assert.Equal(t, "build failed", resp.Error.Message)
}

func TestFormatterFail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.fail(ExitCommandError, "E302", "database unavailable", nil)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)
	assert.Contains(t, exitErr.Message, "E302")
	assert.Contains(t, buf.String(), "database unavailable")
}

func TestVerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}
	quiet.VerboseLog("should not appear")
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())

	verbose := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
	verbose.VerboseLog("loaded %d files", 3)
	assert.Empty(t, out.String(), "verbose output must not corrupt the primary stream")
	assert.Equal(t, "loaded 3 files\n", errOut.String())
}
