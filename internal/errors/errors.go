package errors

import (
	stderrors "errors"
	"fmt"
)

// MsgError is the structured error type for msgindex.
// It carries enough context for logging, transport mapping, and user presentation.
type MsgError struct {
	// Code is the unique error code (e.g., "ERR_202_INDEX_WRITE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code.
	Category Category

	// Severity is derived from the code.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *MsgError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MsgError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works against sentinel MsgErrors.
func (e *MsgError) Is(target error) bool {
	if t, ok := target.(*MsgError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *MsgError) WithDetail(key, value string) *MsgError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *MsgError) WithSuggestion(suggestion string) *MsgError {
	e.Suggestion = suggestion
	return e
}

// New creates a MsgError. Category and severity are derived from the code.
func New(code string, message string, cause error) *MsgError {
	return &MsgError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a MsgError from an existing error, reusing its message.
func Wrap(code string, err error) *MsgError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError reports malformed caller input.
func ValidationError(message string) *MsgError {
	return New(ErrCodeValidation, message, nil)
}

// QuerySyntaxError reports malformed query text.
func QuerySyntaxError(message string, cause error) *MsgError {
	return New(ErrCodeQuerySyntax, message, cause)
}

// IndexUnavailableError reports that the index directory or its write lock
// could not be obtained. It is fatal at startup.
func IndexUnavailableError(message string, cause error) *MsgError {
	return New(ErrCodeIndexUnavailable, message, cause).
		WithSuggestion("Stop any other msgindex process using this index, or check directory permissions")
}

// IndexWriteError reports a failed document operation or commit.
func IndexWriteError(message string, cause error) *MsgError {
	return New(ErrCodeIndexWrite, message, cause)
}

// IndexReadError reports an unexpected reader, search, or stats failure.
func IndexReadError(message string, cause error) *MsgError {
	return New(ErrCodeIndexRead, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MsgError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DaemonUnreachableError reports that the daemon socket did not answer.
func DaemonUnreachableError(message string, cause error) *MsgError {
	return New(ErrCodeDaemonUnreachable, message, cause).
		WithSuggestion("Start it with: msgindex daemon start")
}

// MailboxReadError reports an unreadable or malformed mbox file.
func MailboxReadError(message string, cause error) *MsgError {
	return New(ErrCodeMailboxRead, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MsgError {
	return New(ErrCodeInternal, message, cause)
}

// ErrDisposed is returned by mutations on a disposed index guardian.
var ErrDisposed = New(ErrCodeIndexDisposed, "index has been disposed", nil)

// IsFatal reports whether err carries fatal severity anywhere in its chain.
func IsFatal(err error) bool {
	var me *MsgError
	if stderrors.As(err, &me) {
		return me.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first MsgError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var me *MsgError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category from the first MsgError in the chain.
func GetCategory(err error) Category {
	var me *MsgError
	if stderrors.As(err, &me) {
		return me.Category
	}
	return ""
}

// As is a convenience around errors.As for *MsgError.
func As(err error) (*MsgError, bool) {
	var me *MsgError
	ok := stderrors.As(err, &me)
	return me, ok
}
