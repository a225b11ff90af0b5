package metrics

import (
	"sort"
	"sync"
	"time"
)

// Aggregator aggregates metrics in memory, bucketed by hour.
type Aggregator struct {
	mu  sync.RWMutex
	now func() time.Time

	// Turn metrics: key = "hourBucket|outcome"
	turnMetrics map[string]*turnBucket

	// Tool metrics: key = "hourBucket|toolName"
	toolMetrics map[string]*toolBucket
}

type turnBucket struct {
	hourBucket   time.Time
	outcome      string
	turnCount    int64
	successCount int64
	latencies    []int64 // in milliseconds
}

type toolBucket struct {
	hourBucket   time.Time
	toolName     string
	callCount    int64
	successCount int64
	latencySum   int64 // in milliseconds
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		now:         time.Now,
		turnMetrics: make(map[string]*turnBucket),
		toolMetrics: make(map[string]*toolBucket),
	}
}

// RecordTurn records a single chat turn.
func (a *Aggregator) RecordTurn(outcome string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, outcome)

	bucket, exists := a.turnMetrics[key]
	if !exists {
		bucket = &turnBucket{
			hourBucket: hourBucket,
			outcome:    outcome,
			latencies:  make([]int64, 0, 16),
		}
		a.turnMetrics[key] = bucket
	}

	bucket.turnCount++
	if success {
		bucket.successCount++
	}
	bucket.latencies = append(bucket.latencies, latency.Milliseconds())
}

// RecordToolCall records a single tool call.
func (a *Aggregator) RecordToolCall(toolName string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, toolName)

	bucket, exists := a.toolMetrics[key]
	if !exists {
		bucket = &toolBucket{
			hourBucket: hourBucket,
			toolName:   toolName,
		}
		a.toolMetrics[key] = bucket
	}

	bucket.callCount++
	if success {
		bucket.successCount++
	}
	bucket.latencySum += latency.Milliseconds()
}

// Prune drops all buckets older than the given hour and returns how many were removed.
func (a *Aggregator) Prune(beforeHour time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key, bucket := range a.turnMetrics {
		if bucket.hourBucket.Before(beforeHour) {
			delete(a.turnMetrics, key)
			removed++
		}
	}
	for key, bucket := range a.toolMetrics {
		if bucket.hourBucket.Before(beforeHour) {
			delete(a.toolMetrics, key)
			removed++
		}
	}
	return removed
}

// Stats returns aggregated stats for all buckets whose hour falls into the range.
func (a *Aggregator) Stats(timeRange TimeRange) *RelayMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := newRelayMetrics()

	type outcomeAgg struct {
		count      int64
		latencySum int64
	}
	outcomes := make(map[string]*outcomeAgg)
	allLatencies := make([]int64, 0)
	for _, bucket := range a.turnMetrics {
		if !timeRange.contains(bucket.hourBucket) {
			continue
		}
		stats.TurnCount += bucket.turnCount
		stats.SuccessCount += bucket.successCount
		allLatencies = append(allLatencies, bucket.latencies...)

		agg, ok := outcomes[bucket.outcome]
		if !ok {
			agg = &outcomeAgg{}
			outcomes[bucket.outcome] = agg
		}
		agg.count += bucket.turnCount
		agg.latencySum += sumLatencies(bucket.latencies)
	}
	for outcome, agg := range outcomes {
		stat := &OutcomeStat{Count: agg.count}
		if agg.count > 0 {
			stat.AvgLatency = time.Duration(agg.latencySum/agg.count) * time.Millisecond
		}
		stats.Outcomes[outcome] = stat
	}

	type toolAgg struct {
		count, success, latencySum int64
	}
	tools := make(map[string]*toolAgg)
	for _, bucket := range a.toolMetrics {
		if !timeRange.contains(bucket.hourBucket) {
			continue
		}
		agg, ok := tools[bucket.toolName]
		if !ok {
			agg = &toolAgg{}
			tools[bucket.toolName] = agg
		}
		agg.count += bucket.callCount
		agg.success += bucket.successCount
		agg.latencySum += bucket.latencySum
	}
	for name, agg := range tools {
		stat := &ToolStat{Count: agg.count}
		if agg.count > 0 {
			stat.SuccessRate = float32(agg.success) / float32(agg.count)
			stat.AvgLatency = time.Duration(agg.latencySum/agg.count) * time.Millisecond
		}
		stats.Tools[name] = stat
	}

	stats.LatencyP50 = time.Duration(percentile(allLatencies, 50)) * time.Millisecond
	stats.LatencyP95 = time.Duration(percentile(allLatencies, 95)) * time.Millisecond

	return stats
}

// Helper functions

func (r TimeRange) contains(hour time.Time) bool {
	// A bucket overlaps the range when its hour ends after Start.
	if !r.Start.IsZero() && !hour.Add(time.Hour).After(r.Start) {
		return false
	}
	if !r.End.IsZero() && hour.After(r.End) {
		return false
	}
	return true
}

func truncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func makeKey(hourBucket time.Time, name string) string {
	return hourBucket.Format(time.RFC3339) + "|" + name
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
