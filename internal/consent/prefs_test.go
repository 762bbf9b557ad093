package consent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func newPrefsStore(t *testing.T) *FilePreferenceStore {
	t.Helper()
	return NewFilePreferenceStore(filepath.Join(t.TempDir(), "preferences.json"))
}

func TestPreferenceExactCommandGrant(t *testing.T) {
	store := newPrefsStore(t)
	ctx := context.Background()

	allowed, err := store.IsAllowed(ctx, "u1", "rm -rf build", "recursive_delete")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.Allow(ctx, ports.PreferenceRule{
		UserID:    "u1",
		Command:   "rm -rf build",
		CreatedAt: time.Now(),
	}))

	allowed, err = store.IsAllowed(ctx, "u1", "rm -rf build", "recursive_delete")
	require.NoError(t, err)
	assert.True(t, allowed, "a fresh grant must invalidate the cached denial")

	allowed, err = store.IsAllowed(ctx, "u1", "rm -rf dist", "recursive_delete")
	require.NoError(t, err)
	assert.False(t, allowed, "exact grants do not cover other commands")
}

func TestPreferenceTypeGrant(t *testing.T) {
	store := newPrefsStore(t)
	ctx := context.Background()

	require.NoError(t, store.Allow(ctx, ports.PreferenceRule{
		UserID:      "u1",
		CommandType: "git_discard",
	}))

	allowed, err := store.IsAllowed(ctx, "u1", "git reset --hard HEAD~1", "git_discard")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.IsAllowed(ctx, "u1", "git clean -fd", "git_discard")
	require.NoError(t, err)
	assert.True(t, allowed, "type grants cover every command of the type")
}

func TestPreferenceScopedToUser(t *testing.T) {
	store := newPrefsStore(t)
	ctx := context.Background()

	require.NoError(t, store.Allow(ctx, ports.PreferenceRule{UserID: "u1", Command: "rm -rf build"}))

	allowed, err := store.IsAllowed(ctx, "u2", "rm -rf build", "recursive_delete")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPreferenceDuplicateGrantsCollapse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	store := NewFilePreferenceStore(path)
	ctx := context.Background()

	rule := ports.PreferenceRule{UserID: "u1", Command: "rm -rf build"}
	require.NoError(t, store.Allow(ctx, rule))
	require.NoError(t, store.Allow(ctx, rule))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "rm -rf build"))
}

func TestPreferenceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	ctx := context.Background()

	first := NewFilePreferenceStore(path)
	require.NoError(t, first.Allow(ctx, ports.PreferenceRule{UserID: "u1", Command: "truncate -s 0 app.log"}))

	second := NewFilePreferenceStore(path)
	allowed, err := second.IsAllowed(ctx, "u1", "truncate -s 0 app.log", "file_truncate")
	require.NoError(t, err)
	assert.True(t, allowed)
}
