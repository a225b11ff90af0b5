package metrics

import (
	"context"
	"sync"
	"time"
)

// MockMetricsService is a mock implementation of MetricsService for testing.
type MockMetricsService struct {
	mu        sync.RWMutex
	turns     []TurnRecord
	toolCalls []ToolCallRecord
}

// TurnRecord is a recorded RecordTurn call.
type TurnRecord struct {
	Outcome string
	Latency time.Duration
	Success bool
}

// ToolCallRecord is a recorded RecordToolCall call.
type ToolCallRecord struct {
	ToolName string
	Latency  time.Duration
	Success  bool
}

// NewMockMetricsService creates a new MockMetricsService.
func NewMockMetricsService() *MockMetricsService {
	return &MockMetricsService{}
}

// RecordTurn records turn metrics.
func (m *MockMetricsService) RecordTurn(_ context.Context, outcome string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, TurnRecord{Outcome: outcome, Latency: latency, Success: success})
}

// RecordToolCall records tool call metrics.
func (m *MockMetricsService) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, ToolCallRecord{ToolName: toolName, Latency: latency, Success: success})
}

// GetStats builds stats from the recorded calls; the time range is ignored.
func (m *MockMetricsService) GetStats(_ context.Context, _ TimeRange) (*RelayMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := newRelayMetrics()
	for _, r := range m.turns {
		stats.TurnCount++
		if r.Success {
			stats.SuccessCount++
		}
		stat, ok := stats.Outcomes[r.Outcome]
		if !ok {
			stat = &OutcomeStat{}
			stats.Outcomes[r.Outcome] = stat
		}
		stat.Count++
	}
	for _, r := range m.toolCalls {
		stat, ok := stats.Tools[r.ToolName]
		if !ok {
			stat = &ToolStat{}
			stats.Tools[r.ToolName] = stat
		}
		stat.Count++
	}
	return stats, nil
}

// Turns returns a copy of the recorded turns.
func (m *MockMetricsService) Turns() []TurnRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TurnRecord(nil), m.turns...)
}

// ToolCalls returns a copy of the recorded tool calls.
func (m *MockMetricsService) ToolCalls() []ToolCallRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ToolCallRecord(nil), m.toolCalls...)
}

// Clear removes all recorded metrics.
func (m *MockMetricsService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.toolCalls = nil
}

var _ MetricsService = (*MockMetricsService)(nil)
