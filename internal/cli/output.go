package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/harness"
	"github.com/roach88/resultsets/internal/querysql"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query or scenario failures (with --strict, failed scenarios, version timeout)
	ExitCommandError = 2 // Command error (bad config, bad template, refused dispatch, missing paths)
)

// Error codes carried in CLIError.Code.
const (
	CodeConfig    = string(fanout.ErrCodeConfig)
	CodeDispatch  = string(fanout.ErrCodeDispatch)
	CodeTemplate  = "TEMPLATE_ERROR"
	CodeSchema    = "SCHEMA_ERROR"
	CodeFailed    = "QUERY_FAILED"
	CodeScenarios = "SCENARIOS_FAILED"
	CodeTimeout   = "TIMEOUT"
	CodeCommand   = "COMMAND_ERROR"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for the JSON error envelope.
func ErrorCode(err error) string {
	var (
		configErr   *fanout.ConfigError
		dispatchErr *fanout.DispatchError
		templateErr *querysql.TemplateError
		schemaErr   *harness.SchemaError
	)
	switch {
	case errors.As(err, &templateErr):
		return CodeTemplate
	case errors.As(err, &configErr):
		return CodeConfig
	case errors.As(err, &dispatchErr):
		return CodeDispatch
	case errors.As(err, &schemaErr):
		return CodeSchema
	default:
		return CodeCommand
	}
}

// TextRenderer is implemented by results with a custom text layout.
type TextRenderer interface {
	RenderText(w io.Writer)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Verbose and diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.write("ok", data, nil)
}

// Partial outputs a result that carries failures. In JSON the envelope
// has both data and error.
func (f *OutputFormatter) Partial(data any, code, message string) error {
	return f.write("error", data, &CLIError{Code: code, Message: message})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns it as an ExitError with exitCode.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	var details any
	if err != nil {
		details = err.Error()
	}
	_ = f.Error(ErrorCode(err), message, details)
	return WrapExitError(exitCode, message, err)
}

func (f *OutputFormatter) write(status string, data any, cliErr *CLIError) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: status, Data: data, Error: cliErr})
	}

	if r, ok := data.(TextRenderer); ok {
		r.RenderText(f.Writer)
	} else if data != nil {
		fmt.Fprintln(f.Writer, data)
	}
	if cliErr != nil {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
