package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

var errEmptyChoices = errors.New("model returned no choices")

// maxErrorBody bounds how much of a failed response is read for the error message.
const maxErrorBody = 64 << 10

// AzureClient calls an Azure OpenAI chat-completions deployment.
type AzureClient struct {
	cfg    Config
	client openai.Client
	logger *slog.Logger
}

// NewAzureClient creates a client for the configured deployment. Requests
// are never retried.
func NewAzureClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*AzureClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" || cfg.Deployment == "" || cfg.APIVersion == "" {
		return nil, fmt.Errorf("azure endpoint, deployment and API version are required")
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	logger.Info("Model client configured", "endpoint", cfg.Endpoint, "deployment", cfg.Deployment)

	return &AzureClient{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger,
	}, nil
}

// Complete implements Completer.
func (c *AzureClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		// Azure routes by deployment name carried in the model field.
		Model: openai.ChatModel(c.cfg.Deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Question),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
	})
	if err != nil {
		var sdkErr *openai.Error
		if errors.As(err, &sdkErr) {
			return nil, toAPIError(sdkErr)
		}
		return nil, fmt.Errorf("call model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyChoices
	}

	return &CompletionResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// toAPIError maps an SDK error onto APIError, falling back to the raw body
// and then the status text when the response carried no error message.
func toAPIError(err *openai.Error) *APIError {
	apiErr := &APIError{
		StatusCode: err.StatusCode,
		Code:       err.Code,
		Message:    err.Message,
	}
	if apiErr.Message == "" && err.Response != nil && err.Response.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(err.Response.Body, maxErrorBody))
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(err.StatusCode)
	}
	return apiErr
}
