package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/msgindex/internal/mailbox"
	"github.com/Aman-CERP/msgindex/internal/service"
	"github.com/Aman-CERP/msgindex/internal/store"
	"github.com/Aman-CERP/msgindex/internal/telemetry"
	"github.com/Aman-CERP/msgindex/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "msgindex"

// Server exposes index operations as MCP tools.
type Server struct {
	mcp     *mcp.Server
	backend service.Backend
	logger  *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name: ToolSearchMessages,
		Description: "Search indexed messages. Supports field qualifiers (Sender:, Recipient:, Subject:, Body:, Id:), " +
			"AND/OR/NOT, quoted phrases and * ? wildcards. Matching is case-insensitive.",
	},
	{Name: ToolAddMessage, Description: "Index a new message. Returns it with its assigned id and timestamp."},
	{Name: ToolUpdateMessage, Description: "Replace the message with the given id, or create it if absent."},
	{Name: ToolDeleteMessage, Description: "Delete the message with the given id. Unknown ids are ignored."},
	{Name: ToolIndexStats, Description: "Report document and segment counts of the index."},
	{Name: ToolOptimizeIndex, Description: "Merge the index into a single segment and drop deleted documents."},
	{Name: ToolRebuildIndex, Description: "Rebuild the index from the built-in sample messages or an mbox file."},
}

// NewServer creates an MCP server over backend.
func NewServer(backend service.Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerStatsResource()
	return s, nil
}

// SetMetrics exposes query telemetry as a resource.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.metrics == nil
	s.metrics = m
	if m != nil && first {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), toolInfos...)
}

func describe(name string) string {
	for _, t := range toolInfos {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchMessages, Description: describe(ToolSearchMessages)}, s.searchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolAddMessage, Description: describe(ToolAddMessage)}, s.addHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolUpdateMessage, Description: describe(ToolUpdateMessage)}, s.updateHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolDeleteMessage, Description: describe(ToolDeleteMessage)}, s.deleteHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStats, Description: describe(ToolIndexStats)}, s.statsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolOptimizeIndex, Description: describe(ToolOptimizeIndex)}, s.optimizeHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRebuildIndex, Description: describe(ToolRebuildIndex)}, s.rebuildHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

// searchHandler reports query problems in the output rather than as a
// tool error, alongside a markdown rendering of the hits.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	res := s.backend.Search(ctx, in.Query, in.Limit)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(in.Query, res)}},
		IsError: res.Failed(),
	}, ToSearchOutput(res), nil
}

func (s *Server) addHandler(ctx context.Context, _ *mcp.CallToolRequest, in AddInput) (
	*mcp.CallToolResult,
	MessageOutput,
	error,
) {
	msg, err := s.backend.AddMessage(ctx, service.NewMessage{
		Sender:     in.Sender,
		Recipients: in.Recipients,
		Subject:    in.Subject,
		Body:       in.Body,
	})
	if err != nil {
		return nil, MessageOutput{}, MapError(err)
	}
	return nil, ToMessageOutput(msg), nil
}

func (s *Server) updateHandler(ctx context.Context, _ *mcp.CallToolRequest, in UpdateInput) (
	*mcp.CallToolResult,
	MessageOutput,
	error,
) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, MessageOutput{}, NewInvalidParamsError("id parameter is required")
	}
	msg, err := s.backend.UpdateMessage(ctx, in.ID, service.NewMessage{
		Sender:     in.Sender,
		Recipients: in.Recipients,
		Subject:    in.Subject,
		Body:       in.Body,
	})
	if err != nil {
		return nil, MessageOutput{}, MapError(err)
	}
	return nil, ToMessageOutput(msg), nil
}

func (s *Server) deleteHandler(ctx context.Context, _ *mcp.CallToolRequest, in DeleteInput) (
	*mcp.CallToolResult,
	DeleteOutput,
	error,
) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, DeleteOutput{}, NewInvalidParamsError("id parameter is required")
	}
	if err := s.backend.DeleteMessage(ctx, in.ID); err != nil {
		return nil, DeleteOutput{}, MapError(err)
	}
	return nil, DeleteOutput{ID: in.ID, Deleted: true}, nil
}

func (s *Server) statsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	return nil, ToStatsOutput(s.backend.GetStats(ctx)), nil
}

func (s *Server) optimizeHandler(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	if err := s.backend.OptimizeIndex(ctx); err != nil {
		return nil, StatsOutput{}, MapError(err)
	}
	return nil, ToStatsOutput(s.backend.GetStats(ctx)), nil
}

func (s *Server) rebuildHandler(ctx context.Context, _ *mcp.CallToolRequest, in RebuildInput) (
	*mcp.CallToolResult,
	RebuildOutput,
	error,
) {
	var (
		msgs    []store.Message
		skipped int
	)
	switch in.Source {
	case "samples", "":
		msgs = service.SampleMessages(time.Now())
	case "mbox":
		if in.Path == "" {
			return nil, RebuildOutput{}, NewInvalidParamsError("path parameter is required for the mbox source")
		}
		res, err := mailbox.ReadFile(ctx, in.Path, mailbox.Options{})
		if err != nil {
			return nil, RebuildOutput{}, MapError(err)
		}
		msgs, skipped = res.Messages, res.Skipped
	default:
		return nil, RebuildOutput{}, NewInvalidParamsError(fmt.Sprintf("unknown source %q (use samples or mbox)", in.Source))
	}

	report, err := s.backend.RebuildIndex(ctx, msgs, !in.Append, nil)
	if err != nil {
		return nil, RebuildOutput{}, MapError(err)
	}
	return nil, RebuildOutput{
		Indexed:     report.Indexed,
		Skipped:     report.Skipped,
		MboxSkipped: skipped,
		Recreate:    report.Recreate,
		DurationMS:  report.Duration.Milliseconds(),
	}, nil
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
