package daemon

import (
	"encoding/json"
	"fmt"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing          = "ping"
	MethodStatus        = "status"
	MethodMessageAdd    = "message.add"
	MethodMessageUpdate = "message.update"
	MethodMessageDelete = "message.delete"
	MethodSearch        = "search"
	MethodRebuild       = "admin.rebuild"
	MethodOptimize      = "admin.optimize"
	MethodStats         = "admin.stats"
)

// isLongRunning reports whether method may run longer than one client
// timeout. Callers wait for these until their context ends.
func isLongRunning(method string) bool {
	return method == MethodRebuild || method == MethodOptimize
}

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	ErrCodeIndexUnavailable = -32010
	ErrCodeWriteFailed      = -32011
	ErrCodeDisposed         = -32012
)

// Rebuild sources.
const (
	SourceSamples  = "samples"
	SourceMbox     = "mbox"
	SourceMessages = "messages"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the structured
// error when the failure came from the index.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorData is the coded error behind an RPC failure.
type ErrorData struct {
	Code       string            `json:"code"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{
		JSONRPC: "2.0",
		Result:  data,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// ErrorResponseFor maps err onto a JSON-RPC error, keeping its code
// and details in Data.
func ErrorResponseFor(id string, err error) Response {
	me, ok := msgerrors.As(err)
	if !ok {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}

	code := ErrCodeInternalError
	switch me.Code {
	case msgerrors.ErrCodeValidation:
		code = ErrCodeInvalidParams
	case msgerrors.ErrCodeIndexUnavailable:
		code = ErrCodeIndexUnavailable
	case msgerrors.ErrCodeIndexWrite, msgerrors.ErrCodeMailboxRead:
		code = ErrCodeWriteFailed
	case msgerrors.ErrCodeIndexDisposed:
		code = ErrCodeDisposed
	}

	resp := NewErrorResponse(id, code, me.Message)
	resp.Error.Data = &ErrorData{
		Code:       me.Code,
		Details:    me.Details,
		Suggestion: me.Suggestion,
	}
	return resp
}

// AsMsgError rebuilds the structured error carried by an RPC error.
func (e *Error) AsMsgError() *msgerrors.MsgError {
	if e.Data == nil || e.Data.Code == "" {
		return msgerrors.InternalError(e.Message, e)
	}
	me := msgerrors.New(e.Data.Code, e.Message, nil)
	for k, v := range e.Data.Details {
		me.WithDetail(k, v)
	}
	if e.Data.Suggestion != "" {
		me.WithSuggestion(e.Data.Suggestion)
	}
	return me
}

// MessageParams carries a new or replacement message. ID is only used
// by message.update.
type MessageParams struct {
	ID string `json:"id,omitempty"`
	service.NewMessage
}

// Validate checks the id for updates. Field validation happens in the
// service so every transport reports the same errors.
func (p *MessageParams) Validate(requireID bool) error {
	if requireID && p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// DeleteParams are the parameters for message.delete.
type DeleteParams struct {
	ID string `json:"id"`
}

// Validate checks that required fields are present.
func (p *DeleteParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// DeleteResult acknowledges a delete.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the search query (required).
	Query string `json:"query"`

	// Limit is the maximum number of results. Zero or negative means the
	// server default.
	Limit int `json:"limit,omitempty"`
}

// Validate normalizes the limit. An empty query is not rejected here;
// the search result reports it.
func (p *SearchParams) Validate() error {
	if p.Limit < 0 {
		p.Limit = 0
	}
	return nil
}

// RebuildParams are the parameters for admin.rebuild.
type RebuildParams struct {
	// Source is one of "samples", "mbox" or "messages".
	Source string `json:"source"`

	// Path is the mbox file for the mbox source.
	Path string `json:"path,omitempty"`

	// Messages are indexed as given for the messages source.
	Messages []store.Message `json:"messages,omitempty"`

	// Append keeps existing documents instead of recreating the index.
	Append bool `json:"append,omitempty"`
}

// Validate checks the source and its arguments.
func (p *RebuildParams) Validate() error {
	switch p.Source {
	case SourceSamples:
	case SourceMbox:
		if p.Path == "" {
			return fmt.Errorf("path is required for the mbox source")
		}
	case SourceMessages:
		for i, m := range p.Messages {
			if m.ID == "" {
				return fmt.Errorf("messages[%d]: id is required", i)
			}
		}
	case "":
		return fmt.Errorf("source is required")
	default:
		return fmt.Errorf("unknown source %q", p.Source)
	}
	return nil
}

// RebuildResult reports a finished rebuild.
type RebuildResult struct {
	store.RebuildReport
	// MboxSkipped counts mbox entries that could not be imported.
	MboxSkipped int `json:"mbox_skipped,omitempty"`
}

// OptimizeResult acknowledges an optimize.
type OptimizeResult struct {
	Stats store.IndexStats `json:"stats"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	Uptime     string `json:"uptime"`
	IndexPath  string `json:"index_path"`
	IndexState string `json:"index_state"`
	NumDocs    int64  `json:"num_docs"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
