// Package consent implements the human-approval workflow for dangerous
// commands: a TTL-backed request store, persisted auto-allow preferences, an
// audit trail and the broker that ties them together.
package consent

import (
	"context"
	"sync"
	"time"

	"fixpoint/internal/agent/ports"
)

// MemoryStore is an in-process ConsentStore with per-entry TTL. In multi
// process deployments a shared store (backed by a database or cache service)
// replaces it; the broker only ever talks through the interface.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*storedRequest
	now     func() time.Time
}

type storedRequest struct {
	req       ports.ConsentRequest
	expiresAt time.Time
}

var _ ports.ConsentStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*storedRequest),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock injects the clock, for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

func (s *MemoryStore) Put(ctx context.Context, req *ports.ConsentRequest, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[req.ID] = &storedRequest{
		req:       *req,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*ports.ConsentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return nil, ports.ErrConsentNotFound
	}
	copy := entry.req
	return &copy, nil
}

// Resolve records a decision exactly once. A second resolution, or one
// arriving after expiry, reports false.
func (s *MemoryStore) Resolve(ctx context.Context, id string, decision ports.ConsentDecision, alternative string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return false, nil
	}
	if entry.req.Decision != ports.DecisionPending {
		return false, nil
	}
	entry.req.Decision = decision
	entry.req.AlternativeCommand = alternative
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
