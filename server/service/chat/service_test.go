package chat

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/plugin/ai/metrics"
	"github.com/hrygo/chatrelay/plugin/ai/tools"
	"github.com/hrygo/chatrelay/plugin/events"
)

const testEmail = "anna@example.de"

type testEnv struct {
	store     *fakeStore
	assistant *fakeAssistant
	notifier  *fakeNotifier
	metrics   *metrics.MockMetricsService
	service   *Service
}

func newTestEnv(t *testing.T, client *fakeAssistant, dispatcher ToolDispatcher, mutate ...func(*Config)) *testEnv {
	t.Helper()
	if dispatcher == nil {
		registry, err := tools.NewRegistry()
		require.NoError(t, err)
		dispatcher = tools.NewDispatcher(registry)
	}
	cfg := Config{
		AssistantID:     "asst_test",
		PollInterval:    time.Millisecond,
		MaxPollInterval: 2 * time.Millisecond,
		TurnTimeout:     5 * time.Second,
		MaxBusyRetries:  3,
		Location:        time.FixedZone("CET", 3600),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		store:     newFakeStore(),
		assistant: client,
		notifier:  &fakeNotifier{},
		metrics:   metrics.NewMockMetricsService(),
	}
	svc, err := NewService(env.store, client, dispatcher, env.notifier, cfg,
		WithMetrics(env.metrics),
		WithClock(func() time.Time { return time.Date(2026, 5, 4, 8, 30, 15, 0, time.UTC) }))
	require.NoError(t, err)
	env.service = svc
	return env
}

func TestResolveThread_RegistersOnce(t *testing.T) {
	env := newTestEnv(t, newFakeAssistant(), nil)
	ctx := context.Background()

	first, err := env.service.ResolveThread(ctx, testEmail)
	require.NoError(t, err)
	second, err := env.service.ResolveThread(ctx, testEmail)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.assistant.threadsCreated)
	assert.Equal(t, 1, env.store.creates)
	require.Equal(t, []string{events.TypeUserRegistered}, env.notifier.types())
	assert.Equal(t, map[string]any{"email": testEmail, "thread_id": first}, env.notifier.events[0].Payload)
}

func TestResolveThread_StoreFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, newFakeAssistant(), nil)
	env.store.getErr = assert.AnError

	_, err := env.service.ResolveThread(context.Background(), testEmail)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, env.assistant.threadsCreated)
	assert.Empty(t, env.notifier.types())
}

func TestEnrichPrompt(t *testing.T) {
	env := newTestEnv(t, newFakeAssistant(), nil)

	got := env.service.EnrichPrompt("Anna", testEmail, "Wie wird das Wetter?", true)
	want := "Mein Name: Anna\n" +
		"Meine E-Mail: anna@example.de\n" +
		"Datum und Uhrzeit: 2026-05-04 09:30:15\n" +
		"Mitlesen: aktiviert\n" +
		"Mein Prompt: Wie wird das Wetter?"
	assert.Equal(t, want, got)

	assert.Contains(t, env.service.EnrichPrompt("Anna", testEmail, "x", false), "Mitlesen: deaktiviert\n")
}

func TestChat_CompletedReturnsLatestMessageVerbatim(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusInProgress, assistant.RunStatusCompleted)
	client.latest = "  **Hallo Anna!**\n\nSchön, dass du da bist.  "
	env := newTestEnv(t, client, nil)

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, client.latest, body)
	assert.Equal(t, []string{"run_1"}, client.latestRuns)
	require.Len(t, client.messages["thread_1"], 1)
	assert.True(t, strings.HasSuffix(client.messages["thread_1"][0], "Mein Prompt: Hallo"))
	// Sharing was never set, so only the registration is published.
	assert.Equal(t, []string{events.TypeUserRegistered}, env.notifier.types())
	turns := env.metrics.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, OutcomeCompleted, turns[0].Outcome)
	assert.True(t, turns[0].Success)
}

func TestChat_EmptyReplyUsesFallback(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusCompleted)
	env := newTestEnv(t, client, nil)

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Da fällt mir im Moment gerade nichts zu ein (Leere Nachricht von der KI).", body)
}

func TestChat_TerminalStates(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []assistant.RunStatus
		wantStatus int
		wantBody   string
	}{
		{"cancelled", []assistant.RunStatus{assistant.RunStatusCancelled}, http.StatusOK, EndOfChatMessage},
		{"cancelling then cancelled", []assistant.RunStatus{assistant.RunStatusCancelling, assistant.RunStatusCancelling, assistant.RunStatusCancelled}, http.StatusOK, EndOfChatMessage},
		{"expired", []assistant.RunStatus{assistant.RunStatusExpired}, http.StatusOK, ExpiredMessage},
		{"failed", []assistant.RunStatus{assistant.RunStatusInProgress, assistant.RunStatusFailed}, http.StatusOK, FailedMessage},
		{"unknown", []assistant.RunStatus{"weird_state"}, http.StatusInternalServerError, "*ISSUE* **Run Status: weird_state**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, newFakeAssistant(tt.statuses...), nil)

			status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestChat_ToolCallsResumeRunWithAllResults(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusRequiresAction, assistant.RunStatusCompleted)
	client.toolCalls = []assistant.ToolCall{
		{ID: "call_1", Name: "echo", Arguments: `{"value":"a"}`},
		{ID: "call_2", Name: "does_not_exist", Arguments: `{}`},
		{ID: "call_3", Name: "echo", Arguments: `{"value":"b"}`},
	}
	client.latest = "Erledigt."

	registry, err := tools.NewRegistry(tools.NewFunc("echo", func(_ context.Context, args map[string]any) (string, error) {
		return "echo " + args["value"].(string), nil
	}))
	require.NoError(t, err)
	env := newTestEnv(t, client, tools.NewDispatcher(registry))

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Mach was")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Erledigt.", body)
	require.Len(t, client.submitted, 1)
	results := client.submitted[0]
	require.Len(t, results, 3)
	assert.Equal(t, assistant.ToolResult{CallID: "call_1", Output: "echo a"}, results[0])
	assert.Equal(t, "call_2", results[1].CallID)
	assert.True(t, results[1].Failed)
	assert.Contains(t, results[1].Output, "unknown capability")
	assert.Equal(t, assistant.ToolResult{CallID: "call_3", Output: "echo b"}, results[2])
}

func TestChat_ToggleTranscriptSharingThroughRun(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusRequiresAction, assistant.RunStatusCompleted)
	client.toolCalls = []assistant.ToolCall{
		{ID: "call_1", Name: tools.ReadAlongToolName, Arguments: `{"email":"anna@example.de","read_along":1}`},
	}
	client.latest = "Mitlesen ist an."

	env := newTestEnv(t, client, nil)
	registry, err := tools.NewRegistry(tools.NewReadAlongTool(env.store))
	require.NoError(t, err)
	env.service.tools = tools.NewDispatcher(registry)

	status, _ := env.service.Chat(context.Background(), "Anna", testEmail, "Bitte mitlesen")

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, "Mitlesen für anna@example.de wurde erfolgreich aktiviert", client.submitted[0][0].Output)
	assert.True(t, env.store.sharing[testEmail])
}

func TestChat_BusyThreadIsCancelledAndRetried(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusCompleted)
	client.latest = "Da bin ich."
	client.addErrs = []error{&assistant.BusyThreadError{ThreadID: "thread_1", RunID: "run_old"}}
	env := newTestEnv(t, client, nil)

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Da bin ich.", body)
	assert.Equal(t, []string{"run_old"}, client.cancelled)
	assert.Equal(t, []string{"thread_1"}, client.runThreads)
	assert.Len(t, client.messages["thread_1"], 1)
}

func TestChat_BusyThreadGivesUpAfterRetries(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusCompleted)
	busy := &assistant.BusyThreadError{ThreadID: "thread_1", RunID: "run_stuck"}
	client.addErrs = []error{busy, busy, busy, busy, busy}
	env := newTestEnv(t, client, nil)

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, StatusIssue, status)
	assert.Contains(t, body, ErrThreadBusy.Error())
	assert.Len(t, client.cancelled, 3)
	assert.Empty(t, client.runThreads)
}

func TestChat_PollFailureReturnsIssueWithoutRetry(t *testing.T) {
	client := newFakeAssistant()
	client.retrieveErr = assert.AnError
	env := newTestEnv(t, client, nil)

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, StatusIssue, status)
	assert.True(t, strings.HasPrefix(body, "*ISSUE* **"))
	assert.Contains(t, body, assert.AnError.Error())
	assert.Equal(t, 1, client.retrieves)
	require.Len(t, env.metrics.Turns(), 1)
	assert.Equal(t, OutcomeError, env.metrics.Turns()[0].Outcome)
}

func TestChat_TurnTimeout(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusInProgress)
	env := newTestEnv(t, client, nil, func(c *Config) { c.TurnTimeout = 30 * time.Millisecond })

	start := time.Now()
	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusIssue, status)
	assert.Contains(t, body, "deadline exceeded")
}

func TestChat_PanicBecomesIssue(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusRequiresAction)
	client.toolCalls = []assistant.ToolCall{{ID: "call_1", Name: "x"}}
	env := newTestEnv(t, client, dispatcherFunc(func(context.Context, []assistant.ToolCall) []assistant.ToolResult {
		panic("dispatcher exploded")
	}))

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, StatusIssue, status)
	assert.Equal(t, "*ISSUE* **dispatcher exploded**", body)
}

func TestChat_SharingPublishesConversation(t *testing.T) {
	client := newFakeAssistant(assistant.RunStatusCompleted)
	client.latest = "Antwort"
	env := newTestEnv(t, client, nil)
	env.store.threads[testEmail] = "thread_known"
	env.store.sharing[testEmail] = true

	status, _ := env.service.Chat(context.Background(), "Anna", testEmail, "Frage")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{
		events.TypeUserPrompt,
		events.TypeBackendPrompt,
		events.TypeBackendResponse,
		events.TypeUserResponse,
	}, env.notifier.types())

	evs := env.notifier.events
	assert.Equal(t, "Frage", evs[0].Payload["prompt"])
	assert.Contains(t, evs[1].Payload["prompt"], "Mitlesen: aktiviert")
	assert.Equal(t, "Antwort", evs[2].Payload["response"])
	assert.Equal(t, evs[2].Payload, evs[3].Payload)
	assert.Equal(t, "thread_known", evs[3].Payload["thread_id"])
}

func TestChat_SharingLookupFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, newFakeAssistant(assistant.RunStatusCompleted), nil)
	env.store.shareErr = assert.AnError

	status, body := env.service.Chat(context.Background(), "Anna", testEmail, "Hallo")

	assert.Equal(t, StatusIssue, status)
	assert.Contains(t, body, assert.AnError.Error())
	assert.Empty(t, env.assistant.runThreads)
}

func TestNewService_Validation(t *testing.T) {
	registry, err := tools.NewRegistry()
	require.NoError(t, err)
	dispatcher := tools.NewDispatcher(registry)

	_, err = NewService(nil, newFakeAssistant(), dispatcher, nil, Config{AssistantID: "a"})
	assert.Error(t, err)

	_, err = NewService(newFakeStore(), newFakeAssistant(), dispatcher, nil, Config{})
	assert.Error(t, err)

	svc, err := NewService(newFakeStore(), newFakeAssistant(), dispatcher, nil, Config{AssistantID: "a", PollInterval: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, svc.cfg.MaxPollInterval)
	assert.Equal(t, time.UTC, svc.cfg.Location)
	assert.IsType(t, events.NoopNotifier{}, svc.notifier)
}

func TestWaitWhilePending_BacksOffUpToMax(t *testing.T) {
	client := newFakeAssistant(
		assistant.RunStatusQueued,
		assistant.RunStatusInProgress,
		assistant.RunStatusInProgress,
		assistant.RunStatusCompleted,
	)
	env := newTestEnv(t, client, nil, func(c *Config) {
		c.PollInterval = 10 * time.Millisecond
		c.MaxPollInterval = 20 * time.Millisecond
		c.PollBackoff = 2
	})

	start := time.Now()
	run, err := env.service.waitWhilePending(context.Background(), "thread_1",
		&assistant.Run{ID: "run_1", Status: assistant.RunStatusQueued})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, assistant.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, client.retrieves)
	// 10ms + 20ms + 20ms + 20ms
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
}
