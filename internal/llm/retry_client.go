package llm

import (
	"context"
	"time"

	"fixpoint/internal/agent/ports"
	fixerrors "fixpoint/internal/errors"
	"fixpoint/internal/shared/logging"
)

// retryClient wraps an inference client with retry logic for transient
// failures. Fatal and permanent errors pass through untouched so the engine
// can classify them.
type retryClient struct {
	underlying ports.StreamingLLMClient
	config     fixerrors.RetryConfig
	logger     logging.Logger
}

var _ ports.StreamingLLMClient = (*retryClient)(nil)

// WrapWithRetry layers retry behavior over client.
func WrapWithRetry(client ports.StreamingLLMClient, config fixerrors.RetryConfig) ports.StreamingLLMClient {
	return &retryClient{
		underlying: client,
		config:     config,
		logger:     logging.NewLLMLogger("retry"),
	}
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	start := time.Now()
	resp, err := fixerrors.RetryWithResultAndLog(ctx, c.config, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return c.underlying.Complete(ctx, req)
	}, c.logger)
	if err != nil {
		c.logger.Warn("Completion failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}
	return resp, nil
}

// StreamComplete retries only until the first delta has been delivered.
// Retrying a stream that already emitted text would duplicate output, so a
// mid-stream failure surfaces to the caller instead.
func (c *retryClient) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	started := false
	wrapped := ports.CompletionStreamCallbacks{
		OnTextDelta: func(delta string) {
			started = true
			if callbacks.OnTextDelta != nil {
				callbacks.OnTextDelta(delta)
			}
		},
		OnToolCallDelta: func(index int, id, name, arguments string) {
			started = true
			if callbacks.OnToolCallDelta != nil {
				callbacks.OnToolCallDelta(index, id, name, arguments)
			}
		},
	}

	return fixerrors.RetryWithResultAndLog(ctx, c.config, func(ctx context.Context) (*ports.CompletionResponse, error) {
		resp, err := c.underlying.StreamComplete(ctx, req, wrapped)
		if err != nil && started {
			return nil, fixerrors.NewPermanentError(err, "The response stream failed after partial output.")
		}
		return resp, err
	}, c.logger)
}
