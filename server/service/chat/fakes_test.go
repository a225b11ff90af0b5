package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/store"
)

// fakeStore is an in-memory ConversationStore.
type fakeStore struct {
	mu       sync.Mutex
	threads  map[string]string
	sharing  map[string]bool
	creates  int
	getErr   error
	shareErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{threads: map[string]string{}, sharing: map[string]bool{}}
}

func (f *fakeStore) GetThreadID(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	id, ok := f.threads[userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) CreateThread(_ context.Context, userID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[userID] = threadID
	f.creates++
	return nil
}

func (f *fakeStore) GetTranscriptSharing(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shareErr != nil {
		return false, f.shareErr
	}
	v, ok := f.sharing[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) SetTranscriptSharing(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sharing[userID] = enabled
	return nil
}

// fakeAssistant scripts the remote service. RetrieveRun returns the queued
// statuses in order and repeats the last one once the queue is drained.
type fakeAssistant struct {
	mu sync.Mutex

	threadSeq      int
	threadsCreated int

	addErrs  []error
	messages map[string][]string

	statuses    []assistant.RunStatus
	toolCalls   []assistant.ToolCall
	retrieveErr error
	retrieves   int

	runThreads []string
	cancelled  []string
	submitted  [][]assistant.ToolResult
	latest     string
	latestRuns []string
}

func newFakeAssistant(statuses ...assistant.RunStatus) *fakeAssistant {
	return &fakeAssistant{messages: map[string][]string{}, statuses: statuses}
}

func (f *fakeAssistant) CreateThread(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadSeq++
	f.threadsCreated++
	return fmt.Sprintf("thread_%d", f.threadSeq), nil
}

func (f *fakeAssistant) AddMessage(_ context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.addErrs) > 0 {
		err := f.addErrs[0]
		f.addErrs = f.addErrs[1:]
		if err != nil {
			return err
		}
	}
	f.messages[threadID] = append(f.messages[threadID], content)
	return nil
}

func (f *fakeAssistant) CreateRun(_ context.Context, threadID, _ string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runThreads = append(f.runThreads, threadID)
	return &assistant.Run{ID: "run_1", ThreadID: threadID, Status: assistant.RunStatusQueued}, nil
}

func (f *fakeAssistant) RetrieveRun(_ context.Context, threadID, runID string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieves++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	status := assistant.RunStatusInProgress
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	run := &assistant.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == assistant.RunStatusRequiresAction {
		run.ToolCalls = f.toolCalls
	}
	return run, nil
}

func (f *fakeAssistant) CancelRun(_ context.Context, _, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, runID)
	return nil
}

func (f *fakeAssistant) SubmitToolOutputs(_ context.Context, threadID, runID string, results []assistant.ToolResult) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, results)
	return &assistant.Run{ID: runID, ThreadID: threadID, Status: assistant.RunStatusQueued}, nil
}

func (f *fakeAssistant) LatestMessage(_ context.Context, _, runID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestRuns = append(f.latestRuns, runID)
	return f.latest, nil
}

type publishedEvent struct {
	Type    string
	Payload map[string]any
}

// fakeNotifier records events synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeNotifier) Publish(_ context.Context, eventType string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Type: eventType, Payload: payload})
}

func (f *fakeNotifier) Close() error { return nil }

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

// dispatcherFunc adapts a function to ToolDispatcher.
type dispatcherFunc func(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolResult

func (f dispatcherFunc) Dispatch(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolResult {
	return f(ctx, calls)
}
