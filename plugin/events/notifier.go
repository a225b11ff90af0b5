package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/chatrelay/plugin/ai/timeout"
)

// AsyncNotifier publishes each event in its own goroutine with a bounded
// timeout, so a slow or broken bus never delays a chat turn.
type AsyncNotifier struct {
	publisher Publisher
	factory   *EventFactory
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncNotifier creates a notifier on top of publisher.
func NewAsyncNotifier(publisher Publisher, factory *EventFactory, publishTimeout time.Duration) *AsyncNotifier {
	if publishTimeout <= 0 {
		publishTimeout = timeout.PublishTimeout
	}
	return &AsyncNotifier{
		publisher: publisher,
		factory:   factory,
		timeout:   publishTimeout,
	}
}

func (n *AsyncNotifier) Publish(ctx context.Context, eventType string, payload map[string]any) {
	event, err := n.factory.NewEvent(eventType, payload)
	if err != nil {
		slog.Error("failed to build event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		slog.Warn("notifier closed, dropping event", slog.String("type", event.Type()))
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()

	// The request may finish before the publish does.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	go func() {
		defer n.wg.Done()
		defer cancel()

		if err := n.publisher.Send(publishCtx, event); err != nil {
			slog.Error("event failed to publish",
				slog.String("type", event.Type()),
				slog.String("id", event.ID()),
				slog.String("error", err.Error()))
			return
		}
		slog.Info("event sent", slog.String("type", event.Type()), slog.String("id", event.ID()))
	}()
}

func (n *AsyncNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.wg.Wait()
	return n.publisher.Close()
}

// NoopNotifier discards all events.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, string, map[string]any) {}

func (NoopNotifier) Close() error { return nil }
