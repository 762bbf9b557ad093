package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/diff"
)

type fileEdit struct {
	workspace *Workspace
	diff      *diff.Generator
}

// NewFileEdit returns the edit_file tool. Edits replace one verbatim snippet;
// a snippet that matches nowhere or in more than one place fails so the model
// is forced to re-read the file instead of guessing.
func NewFileEdit(workspace *Workspace) ports.ToolExecutor {
	return &fileEdit{workspace: workspace, diff: diff.NewGenerator(false)}
}

func (t *fileEdit) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, ok := stringArg(call.Arguments, "path")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'path'")}, nil
	}
	oldText, ok := call.Arguments["old_text"].(string)
	if !ok || oldText == "" {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'old_text'")}, nil
	}
	newText, _ := call.Arguments["new_text"].(string)

	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}
	content := string(data)

	switch count := strings.Count(content, oldText); count {
	case 0:
		return &ports.ToolResult{
			CallID: call.ID,
			Error:  fmt.Errorf("old_text not found in %s; read the file to get its exact current content", t.workspace.Rel(resolved)),
		}, nil
	case 1:
	default:
		if !boolArg(call.Arguments, "replace_all") {
			return &ports.ToolResult{
				CallID: call.ID,
				Error:  fmt.Errorf("old_text matches %d locations in %s; provide more context or set replace_all", count, t.workspace.Rel(resolved)),
			}, nil
		}
	}

	var updated string
	if boolArg(call.Arguments, "replace_all") {
		updated = strings.ReplaceAll(content, oldText, newText)
	} else {
		updated = strings.Replace(content, oldText, newText, 1)
	}

	info, err := os.Stat(resolved)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(resolved, []byte(updated), mode); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	rel := t.workspace.Rel(resolved)
	change := t.diff.Unified(content, updated, rel)
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("Edited %s (%s)\n%s", rel, change.Summary(), truncateDiff(change.Unified)),
		Metadata: map[string]any{
			"path":     rel,
			"modified": true,
		},
	}, nil
}

const maxDiffInResult = 4 * 1024

func truncateDiff(unified string) string {
	if len(unified) <= maxDiffInResult {
		return unified
	}
	return unified[:maxDiffInResult] + "\n... (diff truncated)"
}

func (t *fileEdit) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace an exact text snippet in a file. The snippet must match the current file content verbatim.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":        {Type: "string", Description: "File path relative to the workspace root"},
				"old_text":    {Type: "string", Description: "Exact text to replace"},
				"new_text":    {Type: "string", Description: "Replacement text"},
				"replace_all": {Type: "boolean", Description: "Replace every occurrence instead of requiring a unique match"},
			},
			Required: []string{"path", "old_text", "new_text"},
		},
	}
}

func (t *fileEdit) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "edit_file", Version: "1.0.0", Category: "file_operations", Mutating: true,
	}
}
