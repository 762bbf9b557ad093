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

func TestFileWriteCreatesFileAndParents(t *testing.T) {
	ws := testWorkspace(t)

	result, err := NewFileWrite(ws).Execute(context.Background(), ports.ToolCall{
		ID:   "1",
		Name: "write_file",
		Arguments: map[string]any{
			"path":    "deep/nested/new.go",
			"content": "package nested\n",
		},
	})
	require.NoError(t, err)
	require.NoError(t, result.Error)

	data, err := os.ReadFile(filepath.Join(ws.Root(), "deep", "nested", "new.go"))
	require.NoError(t, err)
	assert.Equal(t, "package nested\n", string(data))
	assert.Contains(t, result.Content, "Created")
	assert.Equal(t, true, result.Metadata["created"])
	assert.Nil(t, result.Metadata["modified"])
}

func TestFileWriteOverwriteReportsModified(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.go"), []byte("old"), 0o644))

	result, err := NewFileWrite(ws).Execute(context.Background(), ports.ToolCall{
		Name:      "write_file",
		Arguments: map[string]any{"path": "a.go", "content": "new"},
	})
	require.NoError(t, err)
	require.NoError(t, result.Error)

	assert.Contains(t, result.Content, "Updated")
	assert.Equal(t, true, result.Metadata["modified"])
	assert.Nil(t, result.Metadata["created"])
}

func TestFileWriteRejectsEscape(t *testing.T) {
	result, err := NewFileWrite(testWorkspace(t)).Execute(context.Background(), ports.ToolCall{
		Name:      "write_file",
		Arguments: map[string]any{"path": "../escape.txt", "content": "x"},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, result.Error, "escapes the workspace")
}
