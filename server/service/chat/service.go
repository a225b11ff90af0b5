// Package chat relays a user's prompt to the remote assistant and drives the
// resulting run to a terminal state, executing requested tools on the way.
//
// A turn resolves (or creates) the user's thread, appends an enriched prompt,
// starts a run and polls it. Runs that pause for tool calls are resumed with
// the dispatched results. Every outcome maps to an HTTP status and body.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/plugin/ai/metrics"
	"github.com/hrygo/chatrelay/plugin/ai/timeout"
	"github.com/hrygo/chatrelay/plugin/events"
	"github.com/hrygo/chatrelay/server/internal/observability"
)

// ErrThreadBusy is returned when a thread stays busy after all cancel-and-retry attempts.
var ErrThreadBusy = errors.New("thread is still busy")

// Config holds the orchestration settings of a Service.
type Config struct {
	AssistantID     string
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollBackoff     float64
	TurnTimeout     time.Duration
	MaxBusyRetries  int
	// Location is used for the timestamp in the enriched prompt.
	Location *time.Location
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = timeout.PollInterval
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = max(timeout.MaxPollInterval, c.PollInterval)
	}
	if c.PollBackoff < 1 {
		c.PollBackoff = timeout.PollBackoff
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = timeout.TurnTimeout
	}
	if c.MaxBusyRetries <= 0 {
		c.MaxBusyRetries = timeout.MaxBusyThreadRetries
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// Service runs chat turns. It is safe for concurrent use.
type Service struct {
	store    ConversationStore
	client   assistant.Client
	tools    ToolDispatcher
	notifier events.Notifier
	metrics  metrics.MetricsService
	cfg      Config
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records every turn on m.
func WithMetrics(m metrics.MetricsService) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for prompt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a chat service.
func NewService(store ConversationStore, client assistant.Client, tools ToolDispatcher, notifier events.Notifier, cfg Config, opts ...Option) (*Service, error) {
	if store == nil || client == nil || tools == nil {
		return nil, errors.New("store, assistant client and tool dispatcher are required")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("assistant id is required")
	}
	if notifier == nil {
		notifier = events.NoopNotifier{}
	}
	cfg.applyDefaults()

	s := &Service{
		store:    store,
		client:   client,
		tools:    tools,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chat runs one turn for the user and returns the HTTP status and body to send.
// It never panics and never returns an error; failures are encoded in the reply.
func (s *Service) Chat(ctx context.Context, name, email, prompt string) (int, string) {
	reply := s.Turn(ctx, name, email, prompt)
	return reply.Status, reply.Body
}

// Turn is Chat with the outcome classification kept.
func (s *Service) Turn(ctx context.Context, name, email, prompt string) (reply Reply) {
	start := time.Now()
	reqCtx := observability.FromContextOrNew(ctx, "chat")
	reqCtx.UserEmail = email

	defer func() {
		if r := recover(); r != nil {
			reqCtx.Error("chat turn panicked", fmt.Errorf("%v", r))
			reply = issueReply(fmt.Errorf("%v", r))
		}
		s.recordTurn(ctx, reply.Outcome, time.Since(start))
		reqCtx.Info("chat turn finished",
			slog.Int("status", reply.Status),
			slog.String("outcome", reply.Outcome),
			slog.Int64(observability.LogFieldDuration, time.Since(start).Milliseconds()))
	}()

	turnCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	reply, err := s.converse(turnCtx, reqCtx, name, email, prompt)
	if err != nil {
		reqCtx.Error("chat turn failed", err)
		return issueReply(err)
	}
	return reply
}

func (s *Service) converse(ctx context.Context, reqCtx *observability.RequestContext, name, email, prompt string) (Reply, error) {
	threadID, err := s.ResolveThread(ctx, email)
	if err != nil {
		return Reply{}, err
	}
	reqCtx.ThreadID = threadID

	sharing, err := s.transcriptSharing(ctx, email)
	if err != nil {
		return Reply{}, err
	}

	if sharing {
		s.notifier.Publish(ctx, events.TypeUserPrompt, map[string]any{
			"email":     email,
			"thread_id": threadID,
			"prompt":    prompt,
		})
	}

	enriched := s.EnrichPrompt(name, email, prompt, sharing)
	if err := s.appendMessage(ctx, reqCtx, threadID, enriched); err != nil {
		return Reply{}, err
	}

	if sharing {
		s.notifier.Publish(ctx, events.TypeBackendPrompt, map[string]any{
			"email":     email,
			"thread_id": threadID,
			"prompt":    enriched,
		})
	}

	reply, err := s.runTurn(ctx, reqCtx, threadID)
	if err != nil {
		return Reply{}, err
	}

	if sharing && reply.Outcome == OutcomeCompleted {
		payload := map[string]any{
			"email":     email,
			"thread_id": threadID,
			"response":  reply.Body,
		}
		// Published under both response types.
		s.notifier.Publish(ctx, events.TypeBackendResponse, payload)
		s.notifier.Publish(ctx, events.TypeUserResponse, copyPayload(payload))
	}
	return reply, nil
}

func (s *Service) recordTurn(ctx context.Context, outcome string, latency time.Duration) {
	if s.metrics == nil {
		return
	}
	success := outcome == OutcomeCompleted || outcome == OutcomeEmpty
	s.metrics.RecordTurn(ctx, outcome, latency, success)
}

func copyPayload(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
