package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cp := &ports.Checkpoint{
		TaskID:       "t1",
		UserID:       "u1",
		Kind:         ports.CheckpointPeriodic,
		Request:      "migrate the billing tables",
		Iteration:    4,
		FilesCreated: []string{"schema.go"},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	savedID, err := store.Save(ctx, cp)
	require.NoError(t, err)
	assert.NotEmpty(t, savedID, "an id is assigned when the caller left it empty")

	loaded, err := store.Load(ctx, savedID)
	require.NoError(t, err)
	assert.Equal(t, "t1", loaded.TaskID)
	assert.Equal(t, 4, loaded.Iteration)
	assert.Equal(t, []string{"schema.go"}, loaded.FilesCreated)
	assert.True(t, cp.CreatedAt.Equal(loaded.CreatedAt))
}

func TestFileStoreSaveKeepsCallerID(t *testing.T) {
	store := newTestStore(t)

	savedID, err := store.Save(context.Background(), &ports.Checkpoint{ID: "cp-42", TaskID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "cp-42", savedID)
}

func TestFileStoreLoadUnknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrCheckpointNotFound)
}

func TestFileStoreRejectsPathEscapes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "../other", "a/b", `a\b`} {
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, ports.ErrCheckpointNotFound, "id: %q", id)
		assert.ErrorIs(t, store.Delete(ctx, id), ports.ErrCheckpointNotFound, "id: %q", id)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	savedID, err := store.Save(ctx, &ports.Checkpoint{TaskID: "t1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, savedID))
	_, err = store.Load(ctx, savedID)
	assert.ErrorIs(t, err, ports.ErrCheckpointNotFound)

	assert.ErrorIs(t, store.Delete(ctx, savedID), ports.ErrCheckpointNotFound)
}

func TestFileStoreListFiltersAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	save := func(id, userID, sessionID string, age time.Duration) {
		_, err := store.Save(ctx, &ports.Checkpoint{
			ID:        id,
			UserID:    userID,
			SessionID: sessionID,
			CreatedAt: base.Add(-age),
		})
		require.NoError(t, err)
	}
	save("old", "u1", "s1", time.Hour)
	save("new", "u1", "s1", time.Minute)
	save("other-user", "u2", "s1", time.Second)
	save("other-session", "u1", "s2", time.Second)

	got, err := store.List(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	all, err := store.List(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStoreListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, &ports.Checkpoint{ID: "good", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o600))

	got, err := store.List(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
}
