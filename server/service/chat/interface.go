package chat

import (
	"context"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
)

// ConversationStore maps a user to a remote thread and a transcript sharing flag.
// Lookups return store.ErrNotFound when nothing is stored for the user.
type ConversationStore interface {
	GetThreadID(ctx context.Context, userID string) (string, error)
	CreateThread(ctx context.Context, userID, threadID string) error
	GetTranscriptSharing(ctx context.Context, userID string) (bool, error)
	SetTranscriptSharing(ctx context.Context, userID string, enabled bool) error
}

// ToolDispatcher executes a batch of tool calls, returning one result per call in order.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolResult
}
