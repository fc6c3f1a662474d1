// Package errors provides structured error handling for msgindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Validation errors (caller input, query text)
//   - 2XX: Index errors (open, write, read)
//   - 3XX: Configuration errors
//   - 4XX: Transport and import errors (daemon, mailbox)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryValidation indicates caller-supplied input was rejected.
	CategoryValidation Category = "VALIDATION"
	// CategoryIndex indicates a failure in the full-text index.
	CategoryIndex Category = "INDEX"
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryTransport indicates daemon or import failures.
	CategoryTransport Category = "TRANSPORT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; initialization must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Validation errors (100-199)
	ErrCodeValidation  = "ERR_101_VALIDATION"
	ErrCodeQuerySyntax = "ERR_102_QUERY_SYNTAX"

	// Index errors (200-299)
	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeIndexWrite       = "ERR_202_INDEX_WRITE"
	ErrCodeIndexRead        = "ERR_203_INDEX_READ"
	ErrCodeIndexDisposed    = "ERR_204_INDEX_DISPOSED"

	// Config errors (300-399)
	ErrCodeConfigInvalid = "ERR_301_CONFIG_INVALID"

	// Transport errors (400-499)
	ErrCodeDaemonUnreachable = "ERR_401_DAEMON_UNREACHABLE"
	ErrCodeMailboxRead       = "ERR_402_MAILBOX_READ"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_VALIDATION"
	switch code[4] {
	case '1':
		return CategoryValidation
	case '2':
		return CategoryIndex
	case '3':
		return CategoryConfig
	case '4':
		return CategoryTransport
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexUnavailable:
		return SeverityFatal
	case ErrCodeIndexRead, ErrCodeQuerySyntax:
		// Reported inside result values, never raised to a process fault.
		return SeverityWarning
	default:
		return SeverityError
	}
}
