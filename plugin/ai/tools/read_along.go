package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/store"
)

// ReadAlongToolName is the function name the assistant calls to toggle transcript sharing.
const ReadAlongToolName = "set_read_along"

const invalidReadAlongMessage = "Invalid value for read along. Please use 0 or 1."

// TranscriptSharingStore reads and writes the per-user transcript sharing flag.
type TranscriptSharingStore interface {
	GetTranscriptSharing(ctx context.Context, userID string) (bool, error)
	SetTranscriptSharing(ctx context.Context, userID string, enabled bool) error
}

// ReadAlongTool lets a user switch sharing of their conversation on or off.
type ReadAlongTool struct {
	store TranscriptSharingStore
}

// NewReadAlongTool creates the set_read_along capability.
func NewReadAlongTool(s TranscriptSharingStore) *ReadAlongTool {
	return &ReadAlongTool{store: s}
}

func (t *ReadAlongTool) Name() string {
	return ReadAlongToolName
}

// Run expects {"email": string, "read_along": 0|1|true|false}.
func (t *ReadAlongTool) Run(ctx context.Context, args map[string]any) (string, error) {
	email, _ := args["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.Wrap(ErrInvalidArguments, "email is required")
	}

	enable, ok := parseFlag(args["read_along"])
	if !ok {
		slog.Warn("invalid value for read along",
			slog.String("email", email),
			slog.Any("read_along", args["read_along"]))
		return invalidReadAlongMessage, nil
	}

	current, err := t.store.GetTranscriptSharing(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", errors.Wrapf(err, "failed to read sharing flag for %s", email)
		}
		current = false
	}

	if current == enable {
		slog.Info("read along unchanged", slog.String("email", email), slog.Bool("enabled", enable))
		return fmt.Sprintf("Es musste nichts gemacht werden, Mitlesen war für %s bereits %s.", email, stateWord(enable)), nil
	}

	if err := t.store.SetTranscriptSharing(ctx, email, enable); err != nil {
		return "", errors.Wrapf(err, "failed to store sharing flag for %s", email)
	}
	slog.Info("read along updated", slog.String("email", email), slog.Bool("enabled", enable))
	return fmt.Sprintf("Mitlesen für %s wurde erfolgreich %s", email, stateWord(enable)), nil
}

func stateWord(enabled bool) string {
	if enabled {
		return "aktiviert"
	}
	return "deaktiviert"
}

// parseFlag accepts 0/1 as number or string and true/false as bool or string.
func parseFlag(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return flagFromInt(val)
	case int:
		return flagFromInt(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return false, false
		}
		return flagFromInt(f)
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true":
			return true, true
		case "0", "false":
			return false, true
		}
	}
	return false, false
}

func flagFromInt(f float64) (bool, bool) {
	switch f {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}
