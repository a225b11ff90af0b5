package assistant

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		threadID   string
		wantBusy   bool
		wantThread string
		wantRun    string
	}{
		{
			name: "api error busy",
			err: &openai.APIError{
				HTTPStatusCode: http.StatusBadRequest,
				Message:        "Can't add messages to thread_abc123 while a run run_xyz789 is active.",
			},
			threadID:   "thread_other",
			wantBusy:   true,
			wantThread: "thread_abc123",
			wantRun:    "run_xyz789",
		},
		{
			name:       "plain error busy, thread from argument",
			err:        errors.New("error, status code: 400, message: while a run run_1 is active"),
			threadID:   "thread_42",
			wantBusy:   true,
			wantThread: "thread_42",
			wantRun:    "run_1",
		},
		{
			name: "api error other message",
			err: &openai.APIError{
				HTTPStatusCode: http.StatusBadRequest,
				Message:        "Invalid 'content': string too long.",
			},
			threadID: "thread_1",
		},
		{
			name: "server error is never busy",
			err: &openai.APIError{
				HTTPStatusCode: http.StatusInternalServerError,
				Message:        "Can't add messages to thread_a while a run run_b is active.",
			},
			threadID: "thread_a",
		},
		{
			name:     "transport error",
			err:      errors.New("connection reset by peer"),
			threadID: "thread_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err, tt.threadID)
			require.Error(t, got)

			var busy *BusyThreadError
			if !tt.wantBusy {
				assert.False(t, errors.As(got, &busy))
				assert.Equal(t, tt.err, got)
				return
			}
			require.True(t, errors.As(got, &busy))
			assert.Equal(t, tt.wantThread, busy.ThreadID)
			assert.Equal(t, tt.wantRun, busy.RunID)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, translateError(nil, "thread_1"))
}
