package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/server/internal/observability"
)

// runTurn starts a run and drives it to a terminal state.
func (s *Service) runTurn(ctx context.Context, reqCtx *observability.RequestContext, threadID string) (Reply, error) {
	run, err := s.client.CreateRun(ctx, threadID, s.cfg.AssistantID)
	if err != nil {
		return Reply{}, err
	}

	for iteration := 1; ; iteration++ {
		run, err = s.waitWhilePending(ctx, threadID, run)
		if err != nil {
			return Reply{}, err
		}

		reqCtx.Debug("run reached status",
			slog.String(observability.LogFieldRunID, run.ID),
			slog.String(observability.LogFieldRunStatus, string(run.Status)),
			slog.Int(observability.LogFieldIteration, iteration))

		switch run.Status {
		case assistant.RunStatusCompleted:
			text, err := s.client.LatestMessage(ctx, threadID, run.ID)
			if err != nil {
				return Reply{}, err
			}
			if text == "" {
				return okReply(EmptyReplyMessage, OutcomeEmpty), nil
			}
			return okReply(text, OutcomeCompleted), nil

		case assistant.RunStatusCancelled:
			return okReply(EndOfChatMessage, OutcomeCancelled), nil

		case assistant.RunStatusCancelling:
			// Wait for cancelled.
			if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
				return Reply{}, err
			}
			run, err = s.client.RetrieveRun(ctx, threadID, run.ID)
			if err != nil {
				return Reply{}, err
			}

		case assistant.RunStatusExpired:
			return okReply(ExpiredMessage, OutcomeExpired), nil

		case assistant.RunStatusFailed:
			reqCtx.Warn("run failed",
				slog.String(observability.LogFieldRunID, run.ID),
				slog.String("last_error", run.LastError))
			return okReply(FailedMessage, OutcomeFailed), nil

		case assistant.RunStatusRequiresAction:
			if len(run.ToolCalls) == 0 {
				return Reply{}, errors.Errorf("run %s requires action but requested no tool calls", run.ID)
			}
			reqCtx.Info("executing tool calls",
				slog.String(observability.LogFieldRunID, run.ID),
				slog.Int("count", len(run.ToolCalls)))
			results := s.tools.Dispatch(ctx, run.ToolCalls)
			run, err = s.client.SubmitToolOutputs(ctx, threadID, run.ID, results)
			if err != nil {
				return Reply{}, err
			}

		default:
			reqCtx.Warn("unknown run status", slog.String(observability.LogFieldRunStatus, string(run.Status)))
			return unknownStatusReply(string(run.Status)), nil
		}
	}
}

// waitWhilePending polls the run until it leaves queued/in_progress, backing
// off between polls up to MaxPollInterval.
func (s *Service) waitWhilePending(ctx context.Context, threadID string, run *assistant.Run) (*assistant.Run, error) {
	delay := s.cfg.PollInterval
	for run.Status.IsPending() {
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		next, err := s.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
		run = next
		delay = min(time.Duration(float64(delay)*s.cfg.PollBackoff), s.cfg.MaxPollInterval)
	}
	return run, nil
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "chat turn aborted while waiting for the assistant")
	case <-timer.C:
		return nil
	}
}
