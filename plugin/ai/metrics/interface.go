// Package metrics aggregates chat turn and tool call metrics for the relay.
package metrics

import (
	"context"
	"time"
)

// MetricsService records turn and tool call metrics and serves aggregated stats.
type MetricsService interface {
	// RecordTurn records one chat turn with its outcome (e.g. "completed", "failed").
	RecordTurn(ctx context.Context, outcome string, latency time.Duration, success bool)

	// RecordToolCall records one tool invocation.
	RecordToolCall(ctx context.Context, toolName string, latency time.Duration, success bool)

	// GetStats returns aggregated statistics for the time range.
	GetStats(ctx context.Context, timeRange TimeRange) (*RelayMetrics, error)
}

// TimeRange represents a time range for querying metrics.
// A zero Start or End leaves that side open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RelayMetrics represents aggregated relay metrics.
type RelayMetrics struct {
	TurnCount    int64                   `json:"turn_count"`
	SuccessCount int64                   `json:"success_count"`
	LatencyP50   time.Duration           `json:"latency_p50"`
	LatencyP95   time.Duration           `json:"latency_p95"`
	Outcomes     map[string]*OutcomeStat `json:"outcomes"`
	Tools        map[string]*ToolStat    `json:"tools"`
}

// OutcomeStat represents statistics for one turn outcome.
type OutcomeStat struct {
	Count      int64         `json:"count"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// ToolStat represents statistics for a single tool.
type ToolStat struct {
	Count       int64         `json:"count"`
	SuccessRate float32       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
}

func newRelayMetrics() *RelayMetrics {
	return &RelayMetrics{
		Outcomes: make(map[string]*OutcomeStat),
		Tools:    make(map[string]*ToolStat),
	}
}
