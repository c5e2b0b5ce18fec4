package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/driftless/internal/config"
	"github.com/roach88/driftless/internal/deploy"
	"github.com/roach88/driftless/internal/logsub"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(CheckResult{Stack: "orders-dev", Skip: true, Reason: "unchanged"})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok","data":{"stack":"orders-dev","skip":true,"reason":"unchanged"}}`+"\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(deploy.CodeBucketNotFound, "bucket gone", map[string]string{"bucket": "gone"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, deploy.CodeBucketNotFound, resp.Error.Code)
	assert.Equal(t, "bucket gone", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("config-invalid", "memorySize out of range", map[string]string{"file": "service.yml"})
	require.NoError(t, err)
	assert.Equal(t, "Error [config-invalid]: memorySize out of range\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "service.yml"}
	err := formatter.Error("config-invalid", "memorySize out of range", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [config-invalid]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Loaded service %s", "orders")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "Loaded service orders\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := WrapExitError(ExitFailure, "deploy failed", cause)
	assert.Equal(t, "deploy failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{
			name:     "service file",
			err:      &config.LoadError{Code: config.ErrCodeNotFound, Message: "no service file"},
			wantCode: config.ErrCodeNotFound,
			wantExit: ExitCommandError,
		},
		{
			name:     "settings",
			err:      &commandError{code: ErrCodeSettings, err: errors.New("concurrency must be at least 1")},
			wantCode: ErrCodeSettings,
			wantExit: ExitCommandError,
		},
		{
			name:     "provider connection",
			err:      &commandError{code: ErrCodeConnect, err: errors.New("no credentials"), exit: ExitFailure},
			wantCode: ErrCodeConnect,
			wantExit: ExitFailure,
		},
		{
			name:     "missing bucket",
			err:      fmt.Errorf("check: %w", &deploy.Error{Code: deploy.CodeBucketNotFound, Message: "gone"}),
			wantCode: deploy.CodeBucketNotFound,
			wantExit: ExitFailure,
		},
		{
			name:     "filter limit",
			err:      &logsub.Error{Code: logsub.CodeFilterLimitExceeded, Message: "too many"},
			wantCode: logsub.CodeFilterLimitExceeded,
			wantExit: ExitFailure,
		},
		{
			name:     "anything else",
			err:      errors.New("network down"),
			wantCode: ErrCodeGeneric,
			wantExit: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestOutputFormatter_Emit(t *testing.T) {
	text := func(w io.Writer) { fmt.Fprintln(w, "skip orders-dev: unchanged") }
	data := CheckResult{Stack: "orders-dev", Skip: true, Reason: "unchanged"}

	buf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).Emit(data, text))
	assert.Equal(t, "skip orders-dev: unchanged\n", buf.String())

	buf.Reset()
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: buf}).Emit(data, text))
	assert.Equal(t, `{"status":"ok","data":{"stack":"orders-dev","skip":true,"reason":"unchanged"}}`+"\n", buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(&logsub.Error{Code: logsub.CodeFilterLimitExceeded, Message: "too many"})
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Error [log-group-subscription-filter-limit-exceeded]: log-group-subscription-filter-limit-exceeded: too many\n", buf.String())

	// Already classified errors are not written twice.
	buf.Reset()
	exitErr := NewExitError(ExitCommandError, "bad flag")
	assert.Same(t, exitErr, formatter.Fail(exitErr))
	assert.Empty(t, buf.String())
}
