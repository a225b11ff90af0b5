package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Service implements MetricsService on top of an in-memory Aggregator and
// periodically drops buckets older than the retention period.
type Service struct {
	aggregator *Aggregator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	retentionPeriod time.Duration
	cleanupInterval time.Duration
}

// ServiceConfig configures the metrics service.
type ServiceConfig struct {
	RetentionPeriod time.Duration // How long to keep buckets (default: 24 hours)
	CleanupInterval time.Duration // How often to prune (default: 1 hour)
}

// DefaultServiceConfig returns default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RetentionPeriod: 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// NewService creates a metrics service and starts its cleanup loop.
func NewService(cfg ServiceConfig) *Service {
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = DefaultServiceConfig().RetentionPeriod
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultServiceConfig().CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		aggregator:      NewAggregator(),
		ctx:             ctx,
		cancel:          cancel,
		retentionPeriod: cfg.RetentionPeriod,
		cleanupInterval: cfg.CleanupInterval,
	}

	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Close stops the cleanup loop.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Service) cleanup() {
	cutoff := truncateToHour(s.aggregator.now().Add(-s.retentionPeriod))
	if removed := s.aggregator.Prune(cutoff); removed > 0 {
		slog.Debug("pruned metric buckets", slog.Int("count", removed))
	}
}

// RecordTurn records a chat turn metric.
func (s *Service) RecordTurn(_ context.Context, outcome string, latency time.Duration, success bool) {
	s.aggregator.RecordTurn(outcome, latency, success)
}

// RecordToolCall records a tool call metric.
func (s *Service) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	s.aggregator.RecordToolCall(toolName, latency, success)
}

// GetStats retrieves aggregated statistics for the given time range.
func (s *Service) GetStats(_ context.Context, timeRange TimeRange) (*RelayMetrics, error) {
	return s.aggregator.Stats(timeRange), nil
}

var _ MetricsService = (*Service)(nil)
