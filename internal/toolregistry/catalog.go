package toolregistry

import (
	"fixpoint/internal/agent/ports"
	"fixpoint/internal/tools/builtin"
)

// NewDefaultRegistry builds the sealed tool catalog for one task. Read-only
// tools share one result cache; mutating tools purge it on success so reads
// after an edit never return stale content.
func NewDefaultRegistry(workspace *builtin.Workspace, servers *builtin.ServerManager, cacheConfig CacheConfig) (*Registry, error) {
	registry := NewRegistry()
	cache := NewResultCache(cacheConfig)

	tools := []ports.ToolExecutor{
		builtin.NewFileRead(workspace),
		builtin.NewFileWrite(workspace),
		builtin.NewFileEdit(workspace),
		builtin.NewListDir(workspace),
		builtin.NewSearch(workspace),
		builtin.NewRunCommand(workspace),
		builtin.NewStartServer(workspace, servers),
		builtin.NewStopServer(servers),
		builtin.NewCheckEndpoint(),
	}

	for _, tool := range tools {
		if tool.Metadata().Mutating || tool.Metadata().Dangerous {
			tool = NewInvalidatingExecutor(tool, cache)
		} else {
			tool = NewCacheExecutor(tool, cache)
		}
		if err := registry.RegisterBuiltin(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
