package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"fixpoint/internal/agent/ports"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// ExcludeTools lists tool names that should never be cached even when
	// their metadata marks them read-only.
	ExcludeTools []string
}

// DefaultCacheConfig returns sensible defaults for tool result caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

type cacheEntry struct {
	content  string
	metadata map[string]any
	storedAt time.Time
}

// ResultCache is the LRU shared by every cached read-only tool of one task.
// Successful mutations purge it so later reads observe the new workspace
// state instead of a pre-edit snapshot.
type ResultCache struct {
	cache        *lru.Cache[string, cacheEntry]
	ttl          time.Duration
	excludeTools map[string]bool
}

// NewResultCache builds the shared cache. Zero config values fall back to
// DefaultCacheConfig defaults.
func NewResultCache(config CacheConfig) *ResultCache {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		// lru.New only errors on non-positive size which we guard above.
		return nil
	}
	exclude := make(map[string]bool, len(config.ExcludeTools))
	for _, name := range config.ExcludeTools {
		exclude[strings.TrimSpace(name)] = true
	}
	return &ResultCache{
		cache:        cache,
		ttl:          config.TTL,
		excludeTools: exclude,
	}
}

// Purge drops every entry. Called after any successful mutation: directory
// listings and search results can go stale from a single write, so the whole
// cache is invalidated rather than individual paths.
func (r *ResultCache) Purge() {
	r.cache.Purge()
}

// cacheExecutor wraps a read-only ToolExecutor with the shared result cache,
// keyed by (toolName + normalized arguments). Mutating and dangerous tools
// pass straight through so their side effects always run.
type cacheExecutor struct {
	delegate ports.ToolExecutor
	shared   *ResultCache
}

var _ ports.ToolExecutor = (*cacheExecutor)(nil)

// NewCacheExecutor wraps delegate with the shared result cache.
func NewCacheExecutor(delegate ports.ToolExecutor, shared *ResultCache) ports.ToolExecutor {
	if delegate == nil {
		return nil
	}
	if shared == nil {
		return delegate
	}
	return &cacheExecutor{delegate: delegate, shared: shared}
}

func (c *cacheExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if c.shouldSkip(call) {
		return c.delegate.Execute(ctx, call)
	}

	key := c.cacheKey(call)

	if entry, ok := c.shared.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.shared.ttl {
			// Cache hit: shallow copy with the current call's ID.
			return &ports.ToolResult{
				CallID:   call.ID,
				Content:  entry.content,
				Metadata: cloneMetadata(entry.metadata),
			}, nil
		}
		c.shared.cache.Remove(key)
	}

	result, err := c.delegate.Execute(ctx, call)
	if err != nil {
		return result, err
	}
	// Error results are never cached.
	if result != nil && result.Error == nil {
		c.shared.cache.Add(key, cacheEntry{
			content:  result.Content,
			metadata: cloneMetadata(result.Metadata),
			storedAt: time.Now(),
		})
	}
	return result, nil
}

func (c *cacheExecutor) Definition() ports.ToolDefinition {
	return c.delegate.Definition()
}

func (c *cacheExecutor) Metadata() ports.ToolMetadata {
	return c.delegate.Metadata()
}

func (c *cacheExecutor) shouldSkip(call ports.ToolCall) bool {
	meta := c.delegate.Metadata()
	if meta.Mutating || meta.Dangerous {
		return true
	}
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = strings.TrimSpace(meta.Name)
	}
	return c.shared.excludeTools[name]
}

func (c *cacheExecutor) cacheKey(call ports.ToolCall) string {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = strings.TrimSpace(c.delegate.Metadata().Name)
	}
	return fmt.Sprintf("%s:%s", name, normalizeArgs(call.Arguments))
}

// invalidatingExecutor wraps a mutating tool so every successful execution
// purges the shared read cache.
type invalidatingExecutor struct {
	delegate ports.ToolExecutor
	shared   *ResultCache
}

var _ ports.ToolExecutor = (*invalidatingExecutor)(nil)

// NewInvalidatingExecutor wraps a mutating delegate with cache invalidation.
func NewInvalidatingExecutor(delegate ports.ToolExecutor, shared *ResultCache) ports.ToolExecutor {
	if delegate == nil {
		return nil
	}
	if shared == nil {
		return delegate
	}
	return &invalidatingExecutor{delegate: delegate, shared: shared}
}

func (i *invalidatingExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	result, err := i.delegate.Execute(ctx, call)
	if err == nil && result != nil && result.Error == nil {
		i.shared.Purge()
	}
	return result, err
}

func (i *invalidatingExecutor) Definition() ports.ToolDefinition {
	return i.delegate.Definition()
}

func (i *invalidatingExecutor) Metadata() ports.ToolMetadata {
	return i.delegate.Metadata()
}

// normalizeArgs serializes arguments into a deterministic JSON string by
// sorting keys at every level.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sortedMap(args))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// sortedMap converts nested maps to the same concrete type so json.Marshal
// serializes every level with sorted keys.
func sortedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = sortedMap(nested)
		}
		out[k] = v
	}
	return out
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
