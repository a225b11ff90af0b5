package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/sashabaranov/go-openai"
)

// BusyThreadError is returned when a message cannot be appended because a run
// is still active on the thread.
type BusyThreadError struct {
	ThreadID string
	RunID    string
	Err      error
}

func (e *BusyThreadError) Error() string {
	return fmt.Sprintf("thread %s is busy with run %s", e.ThreadID, e.RunID)
}

func (e *BusyThreadError) Unwrap() error {
	return e.Err
}

// The service reports a busy thread only as prose, e.g.
// "Can't add messages to thread_abc while a run run_xyz is active."
var (
	busyRunPattern    = regexp.MustCompile(`while a run (run_[A-Za-z0-9]+) is active`)
	busyThreadPattern = regexp.MustCompile(`(thread_[A-Za-z0-9]+) while a run`)
)

// translateError maps remote errors to typed errors. It is the only place that
// inspects error text; threadID is used when the message omits the thread.
func translateError(err error, threadID string) error {
	if err == nil {
		return nil
	}

	message := err.Error()
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode != http.StatusBadRequest && apiErr.HTTPStatusCode != http.StatusConflict {
			return err
		}
		message = apiErr.Message
	}

	runMatch := busyRunPattern.FindStringSubmatch(message)
	if runMatch == nil {
		return err
	}
	busy := &BusyThreadError{ThreadID: threadID, RunID: runMatch[1], Err: err}
	if threadMatch := busyThreadPattern.FindStringSubmatch(message); threadMatch != nil {
		busy.ThreadID = threadMatch[1]
	}
	return busy
}
