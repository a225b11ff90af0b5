package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", "/chat")
	reqCtx.Info("before thread")
	reqCtx.UserEmail = "a@b.de"
	reqCtx.ThreadID = "thread_1"
	reqCtx.Error("turn failed", errors.New("boom"), slog.String(LogFieldRunID, "run_1"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "req-1", first[LogFieldRequestID])
	assert.Equal(t, "/chat", first[LogFieldRoute])
	assert.NotContains(t, first, LogFieldUserEmail)
	assert.NotContains(t, first, LogFieldThreadID)

	assert.Equal(t, "a@b.de", second[LogFieldUserEmail])
	assert.Equal(t, "thread_1", second[LogFieldThreadID])
	assert.Equal(t, "run_1", second[LogFieldRunID])
	assert.Equal(t, "boom", second["error"])
}

func TestRequestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	reqCtx := NewRequestContext(nil, "/ping")
	assert.NotEmpty(t, reqCtx.RequestID)
	assert.NotNil(t, reqCtx.Logger)

	ctx := WithRequestContext(context.Background(), reqCtx)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)
	assert.Same(t, reqCtx, FromContextOrNew(ctx, "/other"))

	fresh := FromContextOrNew(context.Background(), "/other")
	assert.Equal(t, "/other", fresh.Route)
	assert.NotEqual(t, reqCtx.RequestID, fresh.RequestID)
}
