package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fixpoint/internal/agent/ports"
)

type fileWrite struct {
	workspace *Workspace
}

// NewFileWrite returns the write_file tool.
func NewFileWrite(workspace *Workspace) ports.ToolExecutor {
	return &fileWrite{workspace: workspace}
}

func (t *fileWrite) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, ok := stringArg(call.Arguments, "path")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'path'")}, nil
	}
	content, _ := call.Arguments["content"].(string)

	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	_, statErr := os.Stat(resolved)
	created := os.IsNotExist(statErr)

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	rel := t.workspace.Rel(resolved)
	verb := "Updated"
	if created {
		verb = "Created"
	}
	metadata := map[string]any{"path": rel}
	if created {
		metadata["created"] = true
	} else {
		metadata["modified"] = true
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  fmt.Sprintf("%s %s (%d bytes)", verb, rel, len(content)),
		Metadata: metadata,
	}, nil
}

func (t *fileWrite) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":    {Type: "string", Description: "File path relative to the workspace root"},
				"content": {Type: "string", Description: "Full file content"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *fileWrite) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "write_file", Version: "1.0.0", Category: "file_operations", Mutating: true,
	}
}
