package assistant

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	// ProviderOpenAI targets api.openai.com or a compatible base URL.
	ProviderOpenAI = "openai"
	// ProviderAzure targets an Azure OpenAI resource endpoint.
	ProviderAzure = "azure"
)

// Config holds the assistant provider configuration.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string // OpenAI base URL or Azure resource endpoint
	APIVersion string // Azure only
	HTTPClient *http.Client
}

// OpenAIClient implements Client on top of go-openai.
type OpenAIClient struct {
	client *openai.Client
}

var _ Client = (*OpenAIClient)(nil)

// NewClient creates an assistant client for the configured provider.
func NewClient(cfg *Config) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("assistant config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.Errorf("API key is required for provider %s", cfg.Provider)
	}

	var clientConfig openai.ClientConfig
	switch cfg.Provider {
	case ProviderOpenAI, "":
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	case ProviderAzure:
		if cfg.BaseURL == "" {
			return nil, errors.New("Azure OpenAI endpoint is required")
		}
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
	default:
		return nil, errors.Errorf("unsupported assistant provider: %s", cfg.Provider)
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	slog.Debug("assistant client configured", slog.String("provider", cfg.Provider))
	return &OpenAIClient{client: openai.NewClientWithConfig(clientConfig)}, nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", errors.Wrap(err, "failed to create thread")
	}
	return thread.ID, nil
}

func (c *OpenAIClient) AddMessage(ctx context.Context, threadID, content string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    "user",
		Content: content,
	})
	if err != nil {
		translated := translateError(err, threadID)
		var busy *BusyThreadError
		if errors.As(translated, &busy) {
			return busy
		}
		return errors.Wrapf(err, "failed to add message to thread %s", threadID)
	}
	return nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, errors.Wrapf(translateError(err, threadID), "failed to create run on thread %s", threadID)
	}
	return convertRun(run), nil
}

func (c *OpenAIClient) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve run %s", runID)
	}
	return convertRun(run), nil
}

func (c *OpenAIClient) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.client.CancelRun(ctx, threadID, runID); err != nil {
		return errors.Wrapf(err, "failed to cancel run %s", runID)
	}
	return nil
}

func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, results []ToolResult) (*Run, error) {
	outputs := make([]openai.ToolOutput, 0, len(results))
	for _, r := range results {
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: r.CallID,
			Output:     r.Output,
		})
	}

	run, err := c.client.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{ToolOutputs: outputs})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit %d tool outputs to run %s", len(outputs), runID)
	}
	return convertRun(run), nil
}

// latestMessageWindow bounds how many of the run's newest messages are scanned.
const latestMessageWindow = 10

func (c *OpenAIClient) LatestMessage(ctx context.Context, threadID, runID string) (string, error) {
	limit := latestMessageWindow
	order := "desc"
	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list messages of run %s", runID)
	}
	// The user's own prompt is never a reply.
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		return messageText(msg), nil
	}
	return "", nil
}

// messageText returns the first text part of a message.
func messageText(msg openai.Message) string {
	for _, content := range msg.Content {
		if content.Text != nil && content.Text.Value != "" {
			return content.Text.Value
		}
	}
	return ""
}

func convertRun(run openai.Run) *Run {
	result := &Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   RunStatus(run.Status),
	}
	if run.LastError != nil {
		result.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        tc.ID,
				Type:      string(tc.Type),
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return result
}
