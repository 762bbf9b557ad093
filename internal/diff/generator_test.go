package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	g := NewGenerator(false)

	oldContent := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"
	newContent := "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n"

	result := g.Unified(oldContent, newContent, "main.go")
	require.NotNil(t, result)

	assert.Contains(t, result.Unified, "--- a/main.go")
	assert.Contains(t, result.Unified, "+++ b/main.go")
	assert.Contains(t, result.Unified, "-\tprintln(\"hi\")")
	assert.Contains(t, result.Unified, "+\tprintln(\"hello\")")
	assert.Equal(t, 1, result.AddedLines)
	assert.Equal(t, 1, result.DeletedLines)
	assert.Equal(t, "+1 -1", result.Summary())
}

func TestUnifiedNoChanges(t *testing.T) {
	result := NewGenerator(false).Unified("same\n", "same\n", "a.txt")
	assert.Empty(t, result.Unified)
	assert.Equal(t, "no changes", result.Summary())
}

func TestUnifiedPureAddition(t *testing.T) {
	result := NewGenerator(false).Unified("", "line1\nline2\n", "new.txt")
	assert.Equal(t, 2, result.AddedLines)
	assert.Zero(t, result.DeletedLines)
	assert.Equal(t, "+2", result.Summary())
}

func TestUnifiedBinaryContent(t *testing.T) {
	result := NewGenerator(false).Unified("text", "bin\x00ary", "blob.bin")
	assert.True(t, result.IsBinary)
	assert.Contains(t, result.Unified, "Binary file blob.bin changed")
	assert.Equal(t, "binary file changed", result.Summary())
}

func TestUnifiedColorDisabledHasNoEscapes(t *testing.T) {
	result := NewGenerator(false).Unified("a\n", "b\n", "f.txt")
	assert.NotContains(t, result.Unified, "\x1b[")
}

func TestUnifiedLargeInputSkipped(t *testing.T) {
	huge := strings.Repeat("x", maxDiffInput+1)
	result := NewGenerator(false).Unified(huge, "small", "big.txt")
	assert.Contains(t, result.Unified, "diff skipped")
	assert.Zero(t, result.AddedLines)
}
