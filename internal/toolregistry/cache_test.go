package toolregistry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/agent/ports/mocks"
)

func countingTool(name string, mutating bool, calls *int) *mocks.MockToolExecutor {
	return &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: name, Mutating: mutating}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			*calls++
			return &ports.ToolResult{
				CallID:   call.ID,
				Content:  fmt.Sprintf("result %d", *calls),
				Metadata: map[string]any{"read": true},
			}, nil
		},
	}
}

func TestCacheHitOnRepeatedReadOnlyCall(t *testing.T) {
	calls := 0
	cached := NewCacheExecutor(countingTool("read_file", false, &calls), NewResultCache(DefaultCacheConfig()))

	call := ports.ToolCall{ID: "1", Name: "read_file", Arguments: map[string]any{"path": "a.go"}}
	first, err := cached.Execute(context.Background(), call)
	require.NoError(t, err)

	call.ID = "2"
	second, err := cached.Execute(context.Background(), call)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, "2", second.CallID, "cached results carry the current call's ID")
}

func TestCacheKeyedByArguments(t *testing.T) {
	calls := 0
	cached := NewCacheExecutor(countingTool("read_file", false, &calls), NewResultCache(DefaultCacheConfig()))

	_, err := cached.Execute(context.Background(), ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "a.go"}})
	require.NoError(t, err)
	_, err = cached.Execute(context.Background(), ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "b.go"}})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestCacheArgumentOrderDoesNotMatter(t *testing.T) {
	calls := 0
	cached := NewCacheExecutor(countingTool("search_files", false, &calls), NewResultCache(DefaultCacheConfig()))

	_, err := cached.Execute(context.Background(), ports.ToolCall{Name: "search_files", Arguments: map[string]any{"pattern": "foo", "path": "src"}})
	require.NoError(t, err)
	_, err = cached.Execute(context.Background(), ports.ToolCall{Name: "search_files", Arguments: map[string]any{"path": "src", "pattern": "foo"}})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCacheSkipsMutatingTools(t *testing.T) {
	calls := 0
	cached := NewCacheExecutor(countingTool("write_file", true, &calls), NewResultCache(DefaultCacheConfig()))

	call := ports.ToolCall{Name: "write_file", Arguments: map[string]any{"path": "a.go"}}
	_, err := cached.Execute(context.Background(), call)
	require.NoError(t, err)
	_, err = cached.Execute(context.Background(), call)
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "mutating tools always execute")
}

func TestCacheSkipsExcludedTools(t *testing.T) {
	calls := 0
	config := DefaultCacheConfig()
	config.ExcludeTools = []string{"list_directory"}
	cached := NewCacheExecutor(countingTool("list_directory", false, &calls), NewResultCache(config))

	call := ports.ToolCall{Name: "list_directory", Arguments: map[string]any{"path": "."}}
	_, _ = cached.Execute(context.Background(), call)
	_, _ = cached.Execute(context.Background(), call)

	assert.Equal(t, 2, calls)
}

func TestCacheNeverStoresErrorResults(t *testing.T) {
	calls := 0
	tool := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "read_file"}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			calls++
			return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("file not found")}, nil
		},
	}
	cached := NewCacheExecutor(tool, NewResultCache(DefaultCacheConfig()))

	call := ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "missing.go"}}
	_, _ = cached.Execute(context.Background(), call)
	_, _ = cached.Execute(context.Background(), call)

	assert.Equal(t, 2, calls)
}

func TestCacheExpiresByTTL(t *testing.T) {
	calls := 0
	config := CacheConfig{MaxSize: 8, TTL: 10 * time.Millisecond}
	cached := NewCacheExecutor(countingTool("read_file", false, &calls), NewResultCache(config))

	call := ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "a.go"}}
	_, _ = cached.Execute(context.Background(), call)
	time.Sleep(20 * time.Millisecond)
	_, _ = cached.Execute(context.Background(), call)

	assert.Equal(t, 2, calls)
}

func TestMutationInvalidatesCachedReads(t *testing.T) {
	content := "old"
	readCalls := 0
	reader := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "read_file"}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			readCalls++
			return &ports.ToolResult{CallID: call.ID, Content: content}, nil
		},
	}
	writer := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "write_file", Mutating: true}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			content, _ = call.Arguments["content"].(string)
			return &ports.ToolResult{CallID: call.ID, Content: "written"}, nil
		},
	}

	cache := NewResultCache(DefaultCacheConfig())
	cachedReader := NewCacheExecutor(reader, cache)
	invalidatingWriter := NewInvalidatingExecutor(writer, cache)

	readCall := ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "a.go"}}
	first, err := cachedReader.Execute(context.Background(), readCall)
	require.NoError(t, err)
	assert.Equal(t, "old", first.Content)

	_, err = invalidatingWriter.Execute(context.Background(), ports.ToolCall{
		Name:      "write_file",
		Arguments: map[string]any{"path": "a.go", "content": "new"},
	})
	require.NoError(t, err)

	second, err := cachedReader.Execute(context.Background(), readCall)
	require.NoError(t, err)
	assert.Equal(t, "new", second.Content, "reads after a write must observe the new content")
	assert.Equal(t, 2, readCalls)
}

func TestFailedMutationKeepsCache(t *testing.T) {
	calls := 0
	cache := NewResultCache(DefaultCacheConfig())
	cachedReader := NewCacheExecutor(countingTool("read_file", false, &calls), cache)
	failingWriter := NewInvalidatingExecutor(&mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "write_file", Mutating: true}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("permission denied")}, nil
		},
	}, cache)

	readCall := ports.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "a.go"}}
	_, _ = cachedReader.Execute(context.Background(), readCall)
	_, _ = failingWriter.Execute(context.Background(), ports.ToolCall{Name: "write_file", Arguments: map[string]any{"path": "a.go"}})
	_, _ = cachedReader.Execute(context.Background(), readCall)

	assert.Equal(t, 1, calls, "a write that changed nothing does not evict cached reads")
}

func TestCachePassesThroughDefinitionAndMetadata(t *testing.T) {
	calls := 0
	tool := countingTool("read_file", false, &calls)
	cached := NewCacheExecutor(tool, NewResultCache(DefaultCacheConfig()))

	assert.Equal(t, "read_file", cached.Metadata().Name)
	assert.Equal(t, tool.Definition().Name, cached.Definition().Name)
}
