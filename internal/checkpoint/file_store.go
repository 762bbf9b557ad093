// Package checkpoint persists task snapshots as JSON files so an interrupted
// task can be resumed from another process.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/shared/logging"
	"fixpoint/internal/shared/utils/id"
)

// FileStore keeps one JSON file per checkpoint under a root directory.
type FileStore struct {
	dir    string
	logger logging.Logger
	mutex  sync.Mutex
}

var _ ports.CheckpointStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed. Defaults to
// ~/.fixpoint/checkpoints when dir is empty.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".fixpoint", "checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logging.NewEngineLogger("checkpoint"),
	}, nil
}

// Save persists the checkpoint, assigning an id when the caller left it empty.
func (s *FileStore) Save(ctx context.Context, cp *ports.Checkpoint) (string, error) {
	if cp == nil {
		return "", fmt.Errorf("nil checkpoint")
	}
	if cp.ID == "" {
		cp.ID = id.NewCheckpointID()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.path(cp.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit checkpoint: %w", err)
	}

	s.logger.Info("Saved checkpoint %s (task=%s iteration=%d)", cp.ID, cp.TaskID, cp.Iteration)
	return cp.ID, nil
}

func (s *FileStore) Load(ctx context.Context, checkpointID string) (*ports.Checkpoint, error) {
	if !validID(checkpointID) {
		return nil, ports.ErrCheckpointNotFound
	}

	data, err := os.ReadFile(s.path(checkpointID))
	if os.IsNotExist(err) {
		return nil, ports.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp ports.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", checkpointID, err)
	}
	return &cp, nil
}

func (s *FileStore) Delete(ctx context.Context, checkpointID string) error {
	if !validID(checkpointID) {
		return ports.ErrCheckpointNotFound
	}
	err := os.Remove(s.path(checkpointID))
	if os.IsNotExist(err) {
		return ports.ErrCheckpointNotFound
	}
	return err
}

// List returns checkpoints for the user, newest first. sessionID narrows the
// result when non-empty. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context, userID, sessionID string) ([]*ports.Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	var checkpoints []*ports.Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable checkpoint %s: %v", entry.Name(), err)
			continue
		}
		var cp ports.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			s.logger.Warn("Skipping corrupt checkpoint %s: %v", entry.Name(), err)
			continue
		}
		if userID != "" && cp.UserID != userID {
			continue
		}
		if sessionID != "" && cp.SessionID != sessionID {
			continue
		}
		checkpoints = append(checkpoints, &cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
	})
	return checkpoints, nil
}

func (s *FileStore) path(checkpointID string) string {
	return filepath.Join(s.dir, checkpointID+".json")
}

// validID rejects ids that could escape the store directory.
func validID(checkpointID string) bool {
	return checkpointID != "" &&
		!strings.ContainsAny(checkpointID, "/\\") &&
		checkpointID != "." && checkpointID != ".."
}
