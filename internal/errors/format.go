package errors

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Report is the presentable form of an error. Text, JSON and log output
// are all rendered from it.
type Report struct {
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message"`
	Category string            `json:"category,omitempty"`
	Severity string            `json:"severity,omitempty"`
	Hint     string            `json:"hint,omitempty"`
	Cause    string            `json:"cause,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// ReportOf describes err. Errors without a MsgError in their chain keep
// only their message.
func ReportOf(err error) Report {
	me, ok := As(err)
	if !ok {
		return Report{Message: err.Error()}
	}
	r := Report{
		Code:     me.Code,
		Message:  me.Message,
		Category: string(me.Category),
		Severity: string(me.Severity),
		Hint:     me.Suggestion,
		Details:  me.Details,
	}
	if me.Cause != nil {
		r.Cause = me.Cause.Error()
	}
	return r
}

// Text renders the report for a terminal. The cause is shown only when
// debug is set. There is no trailing newline.
func (r Report) Text(debug bool) string {
	var sb strings.Builder
	sb.WriteString("Error: " + r.Message)
	if r.Hint != "" {
		sb.WriteString("\n  Hint: " + r.Hint)
	}
	if debug && r.Cause != "" {
		sb.WriteString("\n  Cause: " + r.Cause)
	}
	if r.Code != "" {
		sb.WriteString("\n  Code: " + r.Code)
	}
	return sb.String()
}

// JSON renders the report as a single {"error": ...} object.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(struct {
		Error Report `json:"error"`
	}{r})
}

// LogAttrs flattens err into slog attributes. Details are grouped.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	r := ReportOf(err)
	attrs := []any{slog.String("error", r.Message)}
	if r.Code == "" {
		return attrs
	}
	attrs = append(attrs, slog.String("error_code", r.Code), slog.String("category", r.Category))
	if r.Cause != "" {
		attrs = append(attrs, slog.String("cause", r.Cause))
	}
	if len(r.Details) > 0 {
		details := make([]any, 0, len(r.Details))
		for k, v := range r.Details {
			details = append(details, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("details", details...))
	}
	return attrs
}
