package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickValidatePassesWithNoFailures(t *testing.T) {
	var ran []string
	v := NewWithRunner(func(ctx context.Context, workspace, command string) (string, bool) {
		ran = append(ran, command)
		return "", true
	})

	ok, output := v.QuickValidate(context.Background(), "/ws", []string{"main.go", "script.py"})
	assert.True(t, ok)
	assert.Empty(t, output)
	require.Len(t, ran, 2)
	assert.Contains(t, ran[0], "gofmt -e")
	assert.Contains(t, ran[1], "py_compile")
}

func TestQuickValidateReportsFailures(t *testing.T) {
	v := NewWithRunner(func(ctx context.Context, workspace, command string) (string, bool) {
		if strings.Contains(command, "broken.go") {
			return "broken.go:3:1: expected declaration", false
		}
		return "", true
	})

	ok, output := v.QuickValidate(context.Background(), "/ws", []string{"fine.go", "broken.go"})
	assert.False(t, ok)
	assert.Contains(t, output, "broken.go")
	assert.Contains(t, output, "expected declaration")
	assert.NotContains(t, output, "fine.go")
}

func TestQuickValidateSkipsUnknownExtensions(t *testing.T) {
	var ran []string
	v := NewWithRunner(func(ctx context.Context, workspace, command string) (string, bool) {
		ran = append(ran, command)
		return "", true
	})

	ok, _ := v.QuickValidate(context.Background(), "/ws", []string{"README.md", "photo.png"})
	assert.True(t, ok, "files with no syntax checker pass by default")
	assert.Empty(t, ran)
}

func TestSyntaxCommandQuotesPaths(t *testing.T) {
	command, ok := syntaxCommand("dir with space/main.go")
	require.True(t, ok)
	assert.Contains(t, command, "'dir with space/main.go'")
}

func TestSyntaxCommandCoverage(t *testing.T) {
	for file, want := range map[string]string{
		"app.ts":      "tsc",
		"run.sh":      "bash -n",
		"config.yaml": "yaml",
		"data.json":   "json.tool",
		"index.mjs":   "node --check",
	} {
		command, ok := syntaxCommand(file)
		require.True(t, ok, "file: %s", file)
		assert.Contains(t, command, want, "file: %s", file)
	}
}
