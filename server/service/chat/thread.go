package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/plugin/events"
	"github.com/hrygo/chatrelay/server/internal/observability"
	"github.com/hrygo/chatrelay/server/timezone"
	"github.com/hrygo/chatrelay/store"
)

// ResolveThread returns the user's thread, creating and registering one on first contact.
func (s *Service) ResolveThread(ctx context.Context, email string) (string, error) {
	threadID, err := s.store.GetThreadID(ctx, email)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", errors.Wrap(err, "failed to look up thread")
	}

	threadID, err = s.client.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateThread(ctx, email, threadID); err != nil {
		return "", errors.Wrap(err, "failed to store thread")
	}

	slog.Info("registered new user", slog.String("email", email), slog.String("thread_id", threadID))
	s.notifier.Publish(ctx, events.TypeUserRegistered, map[string]any{
		"email":     email,
		"thread_id": threadID,
	})
	return threadID, nil
}

// transcriptSharing treats a user without a stored preference as not sharing.
func (s *Service) transcriptSharing(ctx context.Context, email string) (bool, error) {
	sharing, err := s.store.GetTranscriptSharing(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to read transcript sharing")
	}
	return sharing, nil
}

// EnrichPrompt wraps the raw prompt with the context the assistant expects.
func (s *Service) EnrichPrompt(name, email, prompt string, sharing bool) string {
	readAlong := "deaktiviert"
	if sharing {
		readAlong = "aktiviert"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mein Name: %s\n", name)
	fmt.Fprintf(&sb, "Meine E-Mail: %s\n", email)
	fmt.Fprintf(&sb, "Datum und Uhrzeit: %s\n", timezone.FormatPromptTime(s.now(), s.cfg.Location))
	fmt.Fprintf(&sb, "Mitlesen: %s\n", readAlong)
	fmt.Fprintf(&sb, "Mein Prompt: %s", prompt)
	return sb.String()
}

// appendMessage adds the prompt to the thread. A run still active on the thread
// is cancelled and the append retried, up to MaxBusyRetries times.
func (s *Service) appendMessage(ctx context.Context, reqCtx *observability.RequestContext, threadID, content string) error {
	for attempt := 0; ; attempt++ {
		err := s.client.AddMessage(ctx, threadID, content)
		if err == nil {
			return nil
		}

		var busy *assistant.BusyThreadError
		if !errors.As(err, &busy) {
			return err
		}
		if attempt >= s.cfg.MaxBusyRetries {
			return errors.Wrapf(ErrThreadBusy, "run %s still active after %d cancellations", busy.RunID, attempt)
		}

		reqCtx.Warn("thread busy, cancelling active run",
			slog.String(observability.LogFieldRunID, busy.RunID),
			slog.Int(observability.LogFieldIteration, attempt+1))
		if err := s.client.CancelRun(ctx, busy.ThreadID, busy.RunID); err != nil {
			return errors.Wrapf(err, "failed to cancel run %s blocking the thread", busy.RunID)
		}
	}
}
