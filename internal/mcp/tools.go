package mcp

// Tool names.
const (
	ToolSearchMessages = "search_messages"
	ToolAddMessage     = "add_message"
	ToolUpdateMessage  = "update_message"
	ToolDeleteMessage  = "delete_message"
	ToolIndexStats     = "index_stats"
	ToolOptimizeIndex  = "optimize_index"
	ToolRebuildIndex   = "rebuild_index"
)

// SearchInput defines the input schema for search_messages.
type SearchInput struct {
	Query string `json:"query" jsonschema:"query over Sender, Recipient, Subject, Body and Id fields, e.g. Sender:alice AND Subject:kickoff"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, at most 100"`
}

// SearchOutput defines the output schema for search_messages.
type SearchOutput struct {
	Hits        []HitOutput `json:"hits" jsonschema:"matching messages ordered by score"`
	TotalHits   uint64      `json:"total_hits" jsonschema:"number of matches before the limit was applied"`
	Error       string      `json:"error,omitempty" jsonschema:"why the query could not run, if it failed"`
	ParsedQuery string      `json:"parsed_query,omitempty" jsonschema:"query as handed to the search engine"`
}

// HitOutput is a single scored message.
type HitOutput struct {
	Score   float64       `json:"score" jsonschema:"relevance score"`
	Message MessageOutput `json:"message"`
}

// MessageOutput is a stored message.
type MessageOutput struct {
	ID         string   `json:"id"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body" jsonschema:"message body, truncated for search results"`
	Timestamp  string   `json:"timestamp" jsonschema:"RFC 3339 time the message was indexed, UTC"`
}

// AddInput defines the input schema for add_message.
type AddInput struct {
	Sender     string   `json:"sender" jsonschema:"sender address"`
	Recipients []string `json:"recipients" jsonschema:"one or more recipient addresses"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// UpdateInput defines the input schema for update_message.
type UpdateInput struct {
	ID         string   `json:"id" jsonschema:"id of the message to replace; created if absent"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// DeleteInput defines the input schema for delete_message.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"id of the message to delete"`
}

// DeleteOutput acknowledges a delete. Deleting an unknown id succeeds.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// EmptyInput is used by tools without parameters.
type EmptyInput struct{}

// StatsOutput defines the output schema for index_stats and optimize_index.
type StatsOutput struct {
	NumDocs     int64 `json:"num_docs" jsonschema:"live documents"`
	MaxDocs     int64 `json:"max_docs" jsonschema:"documents including deleted ones not yet merged away"`
	NumSegments int   `json:"num_segments"`
	IsOptimized bool  `json:"is_optimized"`
	Available   bool  `json:"available" jsonschema:"false when statistics could not be computed"`
}

// RebuildInput defines the input schema for rebuild_index.
type RebuildInput struct {
	Source string `json:"source" jsonschema:"samples or mbox"`
	Path   string `json:"path,omitempty" jsonschema:"mbox file path for the mbox source"`
	Append bool   `json:"append,omitempty" jsonschema:"keep existing messages instead of replacing them"`
}

// RebuildOutput reports a finished rebuild.
type RebuildOutput struct {
	Indexed     int   `json:"indexed"`
	Skipped     int   `json:"skipped"`
	MboxSkipped int   `json:"mbox_skipped,omitempty"`
	Recreate    bool  `json:"recreate"`
	DurationMS  int64 `json:"duration_ms"`
}
