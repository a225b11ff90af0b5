package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/plugin/ai/metrics"
	"github.com/hrygo/chatrelay/plugin/ai/timeout"
)

// Dispatcher executes a batch of tool calls concurrently against a Registry.
type Dispatcher struct {
	registry       *Registry
	timeout        time.Duration
	maxConcurrency int
	metricsService metrics.MetricsService
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout sets the timeout for each individual call.
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithMaxConcurrency limits how many calls of one batch run at once.
func WithMaxConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// WithMetrics records every call on the given metrics service.
func WithMetrics(m metrics.MetricsService) DispatcherOption {
	return func(d *Dispatcher) {
		d.metricsService = m
	}
}

// NewDispatcher creates a dispatcher for the registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:       registry,
		timeout:        timeout.ToolExecutionTimeout,
		maxConcurrency: timeout.MaxToolConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs every call and returns one result per call, in input order.
// It returns only after all calls have finished. A failing call never aborts
// the batch; its result carries the diagnostic instead. Calls are not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolResult {
	results := make([]assistant.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) execute(ctx context.Context, call assistant.ToolCall) assistant.ToolResult {
	start := time.Now()
	result := assistant.ToolResult{CallID: call.ID}

	output, err := d.run(ctx, call)
	d.recordMetrics(ctx, call.Name, time.Since(start), err == nil)
	if err != nil {
		slog.Warn("tool call failed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.String("error", err.Error()))
		result.Output = fmt.Sprintf("Error: %v", err)
		result.Failed = true
		return result
	}

	slog.Debug("tool call succeeded",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.Duration("duration", time.Since(start)))
	result.Output = output
	return result
}

type runOutcome struct {
	output string
	err    error
}

func (d *Dispatcher) run(ctx context.Context, call assistant.ToolCall) (string, error) {
	capability, err := d.registry.Lookup(call.Name)
	if err != nil {
		return "", err
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return "", err
	}

	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered so a capability that ignores its context can still finish after we gave up.
	done := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tool panicked",
					slog.String("tool", call.Name),
					slog.String("call_id", call.ID),
					slog.Any("panic", r))
				done <- runOutcome{err: errors.New("failed unexpectedly")}
			}
		}()
		output, err := capability.Run(execCtx, args)
		done <- runOutcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", errors.Wrapf(out.err, "%s", call.Name)
		}
		return out.output, nil
	case <-execCtx.Done():
		return "", errors.Wrapf(execCtx.Err(), "%s did not finish in time", call.Name)
	}
}

func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrapf(ErrInvalidArguments, "malformed JSON: %v", err)
	}
	return args, nil
}

func (d *Dispatcher) recordMetrics(ctx context.Context, toolName string, duration time.Duration, success bool) {
	if d.metricsService != nil {
		d.metricsService.RecordToolCall(ctx, toolName, duration, success)
	}
}
