// Package timeout defines centralized timeout and retry constants for assistant operations.
package timeout

import "time"

// Assistant turn timeout constants.
const (
	// PollInterval is the initial delay between two run status polls.
	PollInterval = 1 * time.Second

	// MaxPollInterval caps the poll delay once backoff has grown it.
	MaxPollInterval = 5 * time.Second

	// PollBackoff is the factor applied to the poll delay after each pending poll.
	PollBackoff = 1.5

	// TurnTimeout bounds one chat turn end to end, including tool execution.
	TurnTimeout = 2 * time.Minute

	// ToolExecutionTimeout is the timeout for an individual tool call.
	ToolExecutionTimeout = 30 * time.Second

	// PublishTimeout bounds a single best-effort event publish.
	PublishTimeout = 5 * time.Second

	// MaxBusyThreadRetries is how often a message append is retried after
	// cancelling the run that keeps the thread busy.
	MaxBusyThreadRetries = 5

	// MaxToolConcurrency limits concurrently running tool calls of one batch.
	MaxToolConcurrency = 8

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
