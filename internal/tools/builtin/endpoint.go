package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fixpoint/internal/agent/ports"
)

const (
	endpointTimeout     = 30 * time.Second
	maxEndpointBodySize = 64 * 1024
)

type checkEndpoint struct {
	client *http.Client
}

// NewCheckEndpoint returns the check_endpoint tool, used to exercise endpoints
// of servers the model started.
func NewCheckEndpoint() ports.ToolExecutor {
	return &checkEndpoint{client: &http.Client{Timeout: endpointTimeout}}
}

func (t *checkEndpoint) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	url, ok := stringArg(call.Arguments, "url")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'url'")}, nil
	}
	if !strings.HasPrefix(url, "http://localhost") &&
		!strings.HasPrefix(url, "http://127.0.0.1") &&
		!strings.HasPrefix(url, "https://localhost") {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("only local endpoints may be called")}, nil
	}

	method := http.MethodGet
	if m, ok := stringArg(call.Arguments, "method"); ok {
		method = strings.ToUpper(m)
	}

	var body io.Reader
	if payload, ok := stringArg(call.Arguments, "body"); ok {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}
	if contentType, ok := stringArg(call.Arguments, "content_type"); ok {
		req.Header.Set("Content-Type", contentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxEndpointBodySize))
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	content := fmt.Sprintf("%s %s -> %d\n%s", method, url, resp.StatusCode, string(respBody))
	result := &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Metadata: map[string]any{
			"status": resp.StatusCode,
			"url":    url,
		},
	}
	if expected, ok := intArg(call.Arguments, "expected_status"); ok && resp.StatusCode != expected {
		result.Error = fmt.Errorf("expected status %d from %s, got %d", expected, url, resp.StatusCode)
	}
	return result, nil
}

func (t *checkEndpoint) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "check_endpoint",
		Description: "Send an HTTP request to a locally running server to verify its behavior",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"url":             {Type: "string", Description: "Local URL, e.g. http://localhost:3000/health"},
				"method":          {Type: "string", Description: "HTTP method", Enum: []string{"GET", "POST", "PUT", "PATCH", "DELETE"}},
				"body":            {Type: "string", Description: "Request body"},
				"content_type":    {Type: "string", Description: "Content-Type header, defaults to application/json when a body is set"},
				"expected_status": {Type: "integer", Description: "Fail unless the response has this status code"},
			},
			Required: []string{"url"},
		},
	}
}

func (t *checkEndpoint) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "check_endpoint", Version: "1.0.0", Category: "execution", Mutating: true,
	}
}
