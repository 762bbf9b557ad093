package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fixpoint/internal/agent/ports"
)

const maxReadBytes = 256 * 1024

type fileRead struct {
	workspace *Workspace
}

// NewFileRead returns the read_file tool.
func NewFileRead(workspace *Workspace) ports.ToolExecutor {
	return &fileRead{workspace: workspace}
}

func (t *fileRead) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, ok := stringArg(call.Arguments, "path")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'path'")}, nil
	}

	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	content := string(data)
	truncated := false
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes]
		truncated = true
	}

	start, hasStart := intArg(call.Arguments, "start")
	end, hasEnd := intArg(call.Arguments, "end")
	if hasStart || hasEnd {
		lines := strings.Split(content, "\n")
		if !hasStart || start < 1 {
			start = 1
		}
		if !hasEnd || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) || start > end {
			content = ""
		} else {
			content = strings.Join(lines[start-1:end], "\n")
		}
	}

	if truncated {
		content += "\n... (file truncated)"
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Metadata: map[string]any{
			"path": t.workspace.Rel(resolved),
			"read": true,
		},
	}, nil
}

func (t *fileRead) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file in the workspace",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":  {Type: "string", Description: "File path relative to the workspace root"},
				"start": {Type: "integer", Description: "First line to return (1-based)"},
				"end":   {Type: "integer", Description: "Last line to return (inclusive)"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *fileRead) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "read_file", Version: "1.0.0", Category: "file_operations",
	}
}
