// Package mcp serves the message index as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexUnavailable indicates the index cannot be opened.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeWriteFailed indicates a mutation was not committed.
	ErrCodeWriteFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeDisposed indicates the index was shut down.
	ErrCodeDisposed = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if me, ok := msgerrors.As(err); ok {
		return mapMsgError(me)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapMsgError(me *msgerrors.MsgError) *MCPError {
	message := me.Message
	if field, ok := me.Details["field"]; ok {
		message = fmt.Sprintf("%s (field: %s)", message, field)
	}
	if me.Suggestion != "" {
		message = fmt.Sprintf("%s %s", message, me.Suggestion)
	}

	code := ErrCodeInternalError
	switch me.Code {
	case msgerrors.ErrCodeValidation:
		code = ErrCodeInvalidParams
	case msgerrors.ErrCodeIndexUnavailable, msgerrors.ErrCodeDaemonUnreachable:
		code = ErrCodeIndexUnavailable
	case msgerrors.ErrCodeIndexWrite, msgerrors.ErrCodeMailboxRead:
		code = ErrCodeWriteFailed
	case msgerrors.ErrCodeIndexDisposed:
		code = ErrCodeDisposed
	}
	return &MCPError{Code: code, Message: message}
}
