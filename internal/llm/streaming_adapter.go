package llm

import (
	"context"

	"fixpoint/internal/agent/ports"
)

// streamingAdapter lifts a non-streaming client to the streaming contract by
// replaying the aggregated response as a single delta.
type streamingAdapter struct {
	ports.LLMClient
}

var _ ports.StreamingLLMClient = (*streamingAdapter)(nil)

// EnsureStreamingClient returns client unchanged when it already streams,
// otherwise wraps it with a synthetic single-delta adapter.
func EnsureStreamingClient(client ports.LLMClient) ports.StreamingLLMClient {
	if streaming, ok := client.(ports.StreamingLLMClient); ok {
		return streaming
	}
	return &streamingAdapter{LLMClient: client}
}

func (a *streamingAdapter) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	resp, err := a.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if callbacks.OnTextDelta != nil && resp.Content != "" {
		callbacks.OnTextDelta(resp.Content)
	}
	if callbacks.OnToolCallDelta != nil {
		for i, call := range resp.ToolCalls {
			callbacks.OnToolCallDelta(i, call.ID, call.Name, "")
		}
	}
	return resp, nil
}
