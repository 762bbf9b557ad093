package builtin

import (
	"context"
	"os"
	"sort"
	"strings"

	"fixpoint/internal/agent/ports"
)

type listDir struct {
	workspace *Workspace
}

// NewListDir returns the list_directory tool.
func NewListDir(workspace *Workspace) ports.ToolExecutor {
	return &listDir{workspace: workspace}
}

func (t *listDir) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, _ := stringArg(call.Arguments, "path")

	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !boolArg(call.Arguments, "show_hidden") {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	content := strings.Join(names, "\n")
	if content == "" {
		content = "(empty directory)"
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Metadata: map[string]any{
			"path":    t.workspace.Rel(resolved),
			"entries": len(names),
		},
	}, nil
}

func (t *listDir) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "list_directory",
		Description: "List the entries of a directory in the workspace",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":        {Type: "string", Description: "Directory path relative to the workspace root (defaults to the root)"},
				"show_hidden": {Type: "boolean", Description: "Include dotfiles"},
			},
		},
	}
}

func (t *listDir) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "list_directory", Version: "1.0.0", Category: "file_operations",
	}
}
