package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/msgindex/internal/telemetry"
)

// Resource URIs.
const (
	URIIndexStats   = "msgindex://index/stats"
	URIQueryMetrics = "msgindex://telemetry/queries"
)

// QueryMetricsOutput is the JSON structure for the query metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries     int64   `json:"total_queries"`
	ExactRepeatCount int64   `json:"exact_repeat_count"`
	ZeroResultPct    float64 `json:"zero_result_pct"`
	Since            string  `json:"since"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_stats",
			URI:         URIIndexStats,
			Description: "Live document and segment counts of the message index",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(URIIndexStats, ToStatsOutput(s.backend.GetStats(ctx)))
		},
	)
}

func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         URIQueryMetrics,
			Description: "Query pattern telemetry for this session",
			MIMEType:    "application/json",
		},
		s.readQueryMetrics,
	)
}

func (s *Server) readQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()

	if metrics == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}
	return jsonResource(URIQueryMetrics, BuildQueryMetricsOutput(metrics.Snapshot()))
}

// BuildQueryMetricsOutput converts a telemetry snapshot for clients.
func BuildQueryMetricsOutput(snap *telemetry.QueryMetricsSnapshot) QueryMetricsOutput {
	out := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:     snap.TotalQueries,
			ExactRepeatCount: snap.ExactRepeatCount,
			ZeroResultPct:    snap.ZeroResultPercentage(),
			Since:            snap.Since.UTC().Format("2006-01-02T15:04:05Z"),
		},
		QueryTypeCounts:     make(map[string]int64, len(snap.QueryTypeCounts)),
		TopTerms:            make([]QueryTermCount, 0, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	if out.ZeroResultQueries == nil {
		out.ZeroResultQueries = []string{}
	}
	for qt, n := range snap.QueryTypeCounts {
		out.QueryTypeCounts[string(qt)] = n
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for b, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(b)] = n
	}
	return out
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
