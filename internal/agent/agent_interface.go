package agent

import "context"

// Completer sends one composed prompt to a model and returns its answer.
// Implementations treat the call as a single opaque operation: text in,
// text out, or an error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Ensure AzureClient implements Completer.
var _ Completer = (*AzureClient)(nil)
