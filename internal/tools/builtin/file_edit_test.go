package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func editCall(args map[string]any) ports.ToolCall {
	return ports.ToolCall{ID: "call-1", Name: "edit_file", Arguments: args}
}

func TestFileEditReplacesUniqueMatch(t *testing.T) {
	ws := testWorkspace(t)
	path := filepath.Join(ws.Root(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("func a() {}\nfunc b() {}\n"), 0o644))

	tool := NewFileEdit(ws)
	result, err := tool.Execute(context.Background(), editCall(map[string]any{
		"path":     "main.go",
		"old_text": "func a() {}",
		"new_text": "func a() { println(\"hi\") }",
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "func a() { println(\"hi\") }\nfunc b() {}\n", string(data))
	assert.Contains(t, result.Content, "Edited main.go")
	assert.Contains(t, result.Content, "+func a() { println(\"hi\") }")
	assert.Equal(t, true, result.Metadata["modified"])
}

func TestFileEditRejectsMissingSnippet(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "main.go"), []byte("content"), 0o644))

	result, err := NewFileEdit(ws).Execute(context.Background(), editCall(map[string]any{
		"path":     "main.go",
		"old_text": "not present",
		"new_text": "x",
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not found")
	assert.Contains(t, result.Error.Error(), "read the file")
}

func TestFileEditRejectsAmbiguousSnippet(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "main.go"), []byte("x = 1\nx = 1\n"), 0o644))

	result, err := NewFileEdit(ws).Execute(context.Background(), editCall(map[string]any{
		"path":     "main.go",
		"old_text": "x = 1",
		"new_text": "x = 2",
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "2 locations")
}

func TestFileEditReplaceAll(t *testing.T) {
	ws := testWorkspace(t)
	path := filepath.Join(ws.Root(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\nx = 1\n"), 0o644))

	result, err := NewFileEdit(ws).Execute(context.Background(), editCall(map[string]any{
		"path":        "main.go",
		"old_text":    "x = 1",
		"new_text":    "x = 2",
		"replace_all": true,
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 2\nx = 2\n", string(data))
}

func TestFileEditMissingFile(t *testing.T) {
	result, err := NewFileEdit(testWorkspace(t)).Execute(context.Background(), editCall(map[string]any{
		"path":     "missing.go",
		"old_text": "a",
		"new_text": "b",
	}))
	require.NoError(t, err)
	assert.Error(t, result.Error)
}

func TestFileEditValidatesArguments(t *testing.T) {
	tool := NewFileEdit(testWorkspace(t))

	result, err := tool.Execute(context.Background(), editCall(map[string]any{"old_text": "a"}))
	require.NoError(t, err)
	assert.ErrorContains(t, result.Error, "path")

	result, err = tool.Execute(context.Background(), editCall(map[string]any{"path": "a.go"}))
	require.NoError(t, err)
	assert.ErrorContains(t, result.Error, "old_text")
}
