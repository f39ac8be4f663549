package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service bounds every model call with a timeout and logs its outcome.
type Service struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService wraps completer. A non-positive timeout uses the default.
func NewService(completer Completer, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{completer: completer, timeout: timeout, logger: logger}
}

// Ask sends the composed system instruction and question to the model.
func (s *Service) Ask(ctx context.Context, system, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.completer.Complete(ctx, CompletionRequest{System: system, Question: question})
	if err != nil {
		s.logger.Error("Model call failed", "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("model call: %w", err)
	}

	s.logger.Info("Model call completed",
		"model", resp.Model,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"duration", time.Since(start),
	)
	return resp.Content, nil
}
