package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure (record does not conform)
	ExitCommandError = 2 // Command error (bad config, schema does not compile, store unreachable)
)

// Error codes reported in command output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config file missing or malformed
	ErrCodeNoSchemas   = "E003" // No CUE schema files found
	ErrCodeCompile     = "E004" // Schema compilation failed
	ErrCodeStore       = "E005" // Store unreachable or transaction failed
	ErrCodeRegister    = "E006" // Shape registration failed
	ErrCodeNotFound    = "E007" // Shape or instance not found
	ErrCodeRecordFile  = "E008" // Record file missing or malformed
	ErrCodeWriteFailed = "E009" // Output file write error
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error. Returns
// ExitCommandError when the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// Response is the standard JSON envelope for command output.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error structure inside a Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON emits a success payload in the JSON format. Callers handle text
// rendering themselves, because each command's text form differs.
func (f *OutputFormatter) JSON(data any) error {
	return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only in verbose mode, to ErrWriter so JSON
// output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
