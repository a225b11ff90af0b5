package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssistantAPI serves the handful of Assistants endpoints the client uses.
type fakeAssistantAPI struct {
	mu         sync.Mutex
	messages   []string
	submitted  []map[string]any
	busy       bool
	cancelled  []string
	// listedRuns holds the run_id filter of every message listing.
	listedRuns []string
	// promptOnly makes the listing contain the user's prompt but no reply.
	promptOnly bool
}

func (f *fakeAssistantAPI) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "thread_new", "object": "thread"})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.busy {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
				"message": "Can't add messages to " + r.PathValue("thread") + " while a run run_active is active.",
				"type":    "invalid_request_error",
			}})
			return
		}
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.messages = append(f.messages, body.Content)
		writeJSON(w, http.StatusOK, map[string]any{"id": "msg_1", "object": "thread.message"})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "run_1", "thread_id": r.PathValue("thread"), "status": "queued"})
	})
	mux.HandleFunc("GET /v1/threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        r.PathValue("run"),
			"thread_id": r.PathValue("thread"),
			"status":    "requires_action",
			"required_action": map[string]any{
				"type": "submit_tool_outputs",
				"submit_tool_outputs": map[string]any{
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "set_read_along",
							"arguments": `{"email":"a@b.de","read_along":1}`,
						},
					}},
				},
			},
		})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs/{run}/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cancelled = append(f.cancelled, r.PathValue("run"))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("run"), "status": "cancelling"})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs/{run}/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		f.mu.Lock()
		f.submitted = append(f.submitted, payload)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("run"), "status": "queued"})
	})
	mux.HandleFunc("GET /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.listedRuns = append(f.listedRuns, r.URL.Query().Get("run_id"))
		promptOnly := f.promptOnly
		f.mu.Unlock()

		textMessage := func(id, role, value string) map[string]any {
			return map[string]any{
				"id":   id,
				"role": role,
				"content": []map[string]any{{
					"type": "text",
					"text": map[string]any{"value": value, "annotations": []any{}},
				}},
			}
		}
		data := []map[string]any{textMessage("msg_3", "user", "Meine E-Mail: a@b.de\nMein Prompt: Hallo")}
		if !promptOnly {
			data = append(data, textMessage("msg_2", "assistant", "Hallo!"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAssistantAPI) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewClient(&Config{Provider: ProviderAzure, APIKey: "key"})
	assert.Error(t, err)

	_, err = NewClient(&Config{Provider: "bedrock", APIKey: "key"})
	assert.Error(t, err)

	client, err := NewClient(&Config{Provider: ProviderAzure, APIKey: "key", BaseURL: "https://example.openai.azure.com", APIVersion: "2024-05-01-preview"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestOpenAIClientConversation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAssistantAPI{}
	client := newTestClient(t, api)

	threadID, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_new", threadID)

	require.NoError(t, client.AddMessage(ctx, threadID, "Mein Prompt: Hallo"))
	assert.Equal(t, []string{"Mein Prompt: Hallo"}, api.messages)

	run, err := client.CreateRun(ctx, threadID, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, run.Status)
	assert.True(t, run.Status.IsPending())

	run, err = client.RetrieveRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRequiresAction, run.Status)
	require.Len(t, run.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Type: "function", Name: "set_read_along", Arguments: `{"email":"a@b.de","read_along":1}`}, run.ToolCalls[0])

	run, err = client.SubmitToolOutputs(ctx, threadID, run.ID, []ToolResult{{CallID: "call_1", Output: "ok"}})
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, run.Status)
	require.Len(t, api.submitted, 1)
	outputs, ok := api.submitted[0]["tool_outputs"].([]any)
	require.True(t, ok)
	require.Len(t, outputs, 1)
	assert.Equal(t, "call_1", outputs[0].(map[string]any)["tool_call_id"])

	text, err := client.LatestMessage(ctx, threadID, "run_1")
	require.NoError(t, err)
	assert.Equal(t, "Hallo!", text)
	assert.Equal(t, []string{"run_1"}, api.listedRuns)

	require.NoError(t, client.CancelRun(ctx, threadID, "run_1"))
	assert.Equal(t, []string{"run_1"}, api.cancelled)
}

func TestOpenAIClientBusyThread(t *testing.T) {
	api := &fakeAssistantAPI{busy: true}
	client := newTestClient(t, api)

	err := client.AddMessage(context.Background(), "thread_9", "hi")
	var busy *BusyThreadError
	require.True(t, errors.As(err, &busy), "expected BusyThreadError, got %v", err)
	assert.Equal(t, "thread_9", busy.ThreadID)
	assert.Equal(t, "run_active", busy.RunID)
}

func TestOpenAIClientLatestMessageIgnoresUserPrompt(t *testing.T) {
	api := &fakeAssistantAPI{promptOnly: true}
	client := newTestClient(t, api)

	text, err := client.LatestMessage(context.Background(), "thread_1", "run_7")

	require.NoError(t, err)
	assert.Empty(t, text, "the user's enriched prompt must not come back as the reply")
	assert.Equal(t, []string{"run_7"}, api.listedRuns)
}
