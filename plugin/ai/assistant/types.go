// Package assistant talks to a hosted assistant service (OpenAI or Azure OpenAI
// Assistants API): threads, messages, runs and tool output submission.
package assistant

import "context"

// RunStatus is the lifecycle state of a run as reported by the remote service.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
)

// IsPending reports whether the run is still waiting to be picked up or executing.
func (s RunStatus) IsPending() bool {
	return s == RunStatusQueued || s == RunStatusInProgress
}

// Run is one execution of the assistant against a thread.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus
	// ToolCalls is set when Status is requires_action.
	ToolCalls []ToolCall
	// LastError carries the remote failure reason for failed runs.
	LastError string
}

// ToolCall is a request from a run to execute a named local function.
type ToolCall struct {
	ID   string
	Type string
	Name string
	// Arguments is the raw JSON object produced by the assistant.
	Arguments string
}

// ToolResult is the output of one ToolCall, correlated by CallID.
type ToolResult struct {
	CallID string
	Output string
	Failed bool
}

// Client is the subset of the Assistants API the relay needs.
type Client interface {
	// CreateThread creates an empty thread and returns its id.
	CreateThread(ctx context.Context) (string, error)
	// AddMessage appends a user message. It returns *BusyThreadError when the
	// thread has an active run.
	AddMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	SubmitToolOutputs(ctx context.Context, threadID, runID string, results []ToolResult) (*Run, error)
	// LatestMessage returns the text of the newest assistant message the run
	// wrote, or an empty string when it wrote none with text content.
	LatestMessage(ctx context.Context, threadID, runID string) (string, error)
}
