package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AzureClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL + "/"
	cfg.APIKey = "test-key"
	cfg.APIVersion = "2024-06-01"
	cfg.Deployment = "gpt-4o"

	c, err := NewAzureClient(cfg, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestAzureClient_Complete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "What is the capital of France?", req.Messages[1].Content)
		assert.Equal(t, 0.7, req.Temperature)
		assert.Equal(t, 500, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Paris."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14}
		}`))
	})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:   "be brief",
		Question: "What is the capital of France?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 2, resp.CompletionTokens)
}

func TestAzureClient_APIErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": "429", "message": "Rate limit reached"}}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{Question: "hi"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestToAPIError_FallsBackToStatusText(t *testing.T) {
	apiErr := toAPIError(&openai.Error{StatusCode: http.StatusBadGateway})
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)

	apiErr = toAPIError(&openai.Error{StatusCode: http.StatusBadRequest, Code: "content_filter", Message: "filtered"})
	assert.Equal(t, "model API returned 400 (content_filter): filtered", apiErr.Error())
}

func TestAzureClient_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "model": "gpt-4o", "choices": []}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{Question: "hi"})
	assert.ErrorIs(t, err, errEmptyChoices)
}

func TestNewAzureClient_RequiresDeployment(t *testing.T) {
	_, err := NewAzureClient(Config{Endpoint: "https://example.com"}, nil, nil)
	assert.Error(t, err)
}

type slowCompleter struct{}

func (slowCompleter) Complete(ctx context.Context, _ CompletionRequest) (*CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return &CompletionResponse{Content: "late"}, nil
	}
}

func TestService_AskTimesOut(t *testing.T) {
	s := NewService(slowCompleter{}, 20*time.Millisecond, nil)

	_, err := s.Ask(context.Background(), "sys", "q")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
