package ports

import (
	"context"
	"errors"
	"time"
)

// CheckpointKind distinguishes cadence snapshots from interruption snapshots.
type CheckpointKind string

const (
	CheckpointPeriodic     CheckpointKind = "periodic"
	CheckpointInterruption CheckpointKind = "interruption"
)

// Checkpoint is a persisted snapshot of task progress, consumed only on
// explicit resume.
type Checkpoint struct {
	ID              string         `json:"id"`
	TaskID          string         `json:"task_id"`
	UserID          string         `json:"user_id"`
	SessionID       string         `json:"session_id"`
	Kind            CheckpointKind `json:"kind"`
	Status          string         `json:"status"`
	Request         string         `json:"request"`
	Workspace       string         `json:"workspace"`
	Iteration       int            `json:"iteration"`
	StepIndex       int            `json:"step_index"`
	RetryCount      int            `json:"retry_count"`
	FilesRead       []string       `json:"files_read,omitempty"`
	FilesCreated    []string       `json:"files_created,omitempty"`
	FilesModified   []string       `json:"files_modified,omitempty"`
	CommandsRun     []string       `json:"commands_run,omitempty"`
	PartialOutput   string         `json:"partial_output,omitempty"`
	InterruptReason string         `json:"interrupt_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ErrCheckpointNotFound is returned by Load for unknown checkpoint ids.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore is the narrow persistence interface the engine depends on.
// The backing store is external; persistence failures are non-fatal.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) (string, error)
	Load(ctx context.Context, id string) (*Checkpoint, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, userID, sessionID string) ([]*Checkpoint, error)
}

// UserPrompter blocks for a response to the single pending human prompt.
type UserPrompter interface {
	// Ask returns the user's response, or an error on timeout/cancel.
	Ask(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}
