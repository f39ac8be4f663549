// Package agent calls the hosted language model.
package agent

import (
	"fmt"
	"time"
)

// CompletionRequest is one question for the model.
type CompletionRequest struct {
	System   string
	Question string
}

// CompletionResponse is the model's answer.
type CompletionResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Config holds model client configuration.
type Config struct {
	Endpoint    string
	APIKey      string
	APIVersion  string
	Deployment  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns default model parameters.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     60 * time.Second,
	}
}

// APIError is a non-2xx response from the model endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("model API returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("model API returned %d: %s", e.StatusCode, e.Message)
}
