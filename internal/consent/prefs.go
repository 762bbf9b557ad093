package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"fixpoint/internal/agent/ports"
)

const prefsCacheTTL = time.Minute

// FilePreferenceStore persists "always allow" grants as a JSON file. Lookups
// go through a short-lived cache so the consent hot path does not reread the
// file for every command.
type FilePreferenceStore struct {
	path  string
	mu    sync.Mutex
	cache *expirable.LRU[string, bool]
}

var _ ports.PreferenceStore = (*FilePreferenceStore)(nil)

// NewFilePreferenceStore stores rules at path (created on first grant).
func NewFilePreferenceStore(path string) *FilePreferenceStore {
	return &FilePreferenceStore{
		path:  path,
		cache: expirable.NewLRU[string, bool](512, nil, prefsCacheTTL),
	}
}

func (s *FilePreferenceStore) Allow(ctx context.Context, rule ports.PreferenceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range rules {
		if existing.UserID == rule.UserID &&
			existing.Command == rule.Command &&
			existing.CommandType == rule.CommandType {
			return nil
		}
	}
	rules = append(rules, rule)
	if err := s.save(rules); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

func (s *FilePreferenceStore) IsAllowed(ctx context.Context, userID, command, commandType string) (bool, error) {
	key := fmt.Sprintf("%s\x00%s\x00%s", userID, command, commandType)
	if allowed, ok := s.cache.Get(key); ok {
		return allowed, nil
	}

	s.mu.Lock()
	rules, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	allowed := false
	for _, rule := range rules {
		if rule.UserID != userID {
			continue
		}
		if rule.Command != "" && rule.Command == command {
			allowed = true
			break
		}
		if rule.CommandType != "" && rule.CommandType == commandType {
			allowed = true
			break
		}
	}
	s.cache.Add(key, allowed)
	return allowed, nil
}

func (s *FilePreferenceStore) load() ([]ports.PreferenceRule, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	var rules []ports.PreferenceRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return rules, nil
}

func (s *FilePreferenceStore) save(rules []ports.PreferenceRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
