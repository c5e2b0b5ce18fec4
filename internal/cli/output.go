package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/driftless/internal/config"
	"github.com/roach88/driftless/internal/pipeline"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Deploy or evaluation failure (missing bucket, filter limit, provider error)
	ExitCommandError = 2 // Command error (service file, settings, ledger)
)

// Error codes for failures that carry no code of their own.
const (
	ErrCodeGeneric  = "error"
	ErrCodeSettings = "invalid-settings"
	ErrCodeLedger   = "ledger-unavailable"
	ErrCodeConnect  = "provider-unavailable"
)

// ExitError is an error with the process exit code it maps to.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // error code or short message
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// commandError attaches a code and exit status to errors of the CLI's own
// making.
type commandError struct {
	code string
	err  error
	exit int
}

func (e *commandError) Error() string {
	return e.err.Error()
}

func (e *commandError) Unwrap() error {
	return e.err
}

// classify returns the code and exit status of err. Service file problems
// and settings are command errors; everything from the pipeline is a
// failure.
func classify(err error) (string, int) {
	var ce *commandError
	if errors.As(err, &ce) {
		if ce.exit != 0 {
			return ce.code, ce.exit
		}
		return ce.code, ExitCommandError
	}
	var le *config.LoadError
	if errors.As(err, &le) {
		return le.Code, ExitCommandError
	}
	if code := pipeline.ErrorCode(err); code != "" {
		return code, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// OutputFormatter writes command results as JSON envelopes or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"` // e.g. "deployment-bucket-not-found"
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintf(f.Writer, "%v\n", data)
	return nil
}

// Emit writes data as the JSON envelope, or calls text with the writer
// otherwise.
func (f *OutputFormatter) Emit(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail writes err with its code and returns the ExitError the command
// exits with. An ExitError passes through unwritten.
func (f *OutputFormatter) Fail(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	code, exit := classify(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// VerboseLog writes a line to ErrWriter, or Writer when unset, in verbose
// mode only. JSON output stays parseable as long as ErrWriter is separate.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
