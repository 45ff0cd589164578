package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", WrapExitError(ExitFailure, "outer", errors.New("inner")), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open journal", inner)

	assert.Equal(t, "failed to open journal: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}

func TestOutputFormatterJSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"lessons": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatterTextError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error("E005", "catalog directory not found", nil))
	assert.Equal(t, "Error [E005]: catalog directory not found\n", buf.String())
}

func TestOutputFormatterFailureCarriesData(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	err := f.Failure(ExitFailure, ErrCodeTestFailed, "1 scenario(s) failed", map[string]int{"failed": 1})
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatterPrintfIsTextOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	(&OutputFormatter{Format: "json", Writer: buf}).Printf("hello %d\n", 1)
	assert.Empty(t, buf.String())

	(&OutputFormatter{Format: "text", Writer: buf}).Printf("hello %d\n", 1)
	assert.Equal(t, "hello 1\n", buf.String())
}

func TestOutputFormatterVerboseLogUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("composing %s", "koan")
	assert.Empty(t, out.String())
	assert.Equal(t, "composing koan\n", errOut.String())

	f.Verbose = false
	f.VerboseLog("ignored")
	assert.Equal(t, "composing koan\n", errOut.String())
}
