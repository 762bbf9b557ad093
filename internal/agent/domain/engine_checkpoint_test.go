package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func TestSnapshotCheckpointCapturesProgress(t *testing.T) {
	now := time.Now()
	tc := NewTaskContext("t1", "migrate the billing tables", "/ws", ComplexityEnterprise, now)
	tc.UserID = "u1"
	tc.SessionID = "s1"
	tc.Iterations = 7
	tc.RecordFileCreated("billing/schema.go")
	tc.RecordFileModified("billing/service.go")
	tc.RecordCommand("go test ./billing/...")
	tc.Messages = []ports.Message{
		{Role: "user", Content: "migrate the billing tables"},
		{Role: "assistant", Content: "Schema created, starting on the service layer."},
	}

	cp := SnapshotCheckpoint(tc, ports.CheckpointInterruption, "database migration requires sign-off", now)

	assert.Equal(t, "t1", cp.TaskID)
	assert.Equal(t, ports.CheckpointInterruption, cp.Kind)
	assert.Equal(t, 7, cp.Iteration)
	assert.Equal(t, []string{"billing/schema.go"}, cp.FilesCreated)
	assert.Equal(t, []string{"billing/service.go"}, cp.FilesModified)
	assert.Equal(t, "database migration requires sign-off", cp.InterruptReason)
	assert.Contains(t, cp.PartialOutput, "service layer")
}

func TestRestoreTaskContextRoundTrip(t *testing.T) {
	now := time.Now()
	tc := NewTaskContext("t1", "migrate the billing tables", "/ws", ComplexityEnterprise, now)
	tc.UserID = "u1"
	tc.SessionID = "s1"
	tc.Iterations = 12
	tc.RecordFileCreated("a.go")
	tc.RecordCommand("npm install")

	cp := SnapshotCheckpoint(tc, ports.CheckpointPeriodic, "", now)
	cp.ID = "cp-1"

	restored := RestoreTaskContext(cp, ComplexityEnterprise, now.Add(time.Hour))
	assert.Equal(t, tc.TaskID, restored.TaskID)
	assert.Equal(t, tc.Request, restored.Request)
	assert.Equal(t, 12, restored.Iterations)
	assert.Equal(t, ComplexityEnterprise.IterationBudget(), restored.MaxIterations,
		"budget is re-derived from the tier, never stored")
	assert.Equal(t, []string{"a.go"}, restored.FilesCreated)
	assert.Equal(t, []string{"npm install"}, restored.CommandsRun)
	assert.Equal(t, "cp-1", restored.LastCheckpointID)
	assert.Equal(t, StatusExecuting, restored.Status)
}

func TestResumePromptSummarizesWork(t *testing.T) {
	cp := &ports.Checkpoint{
		Request:         "migrate the billing tables",
		FilesCreated:    []string{"schema.go"},
		FilesModified:   []string{"service.go"},
		CommandsRun:     []string{"go build ./..."},
		InterruptReason: "production deployment",
		PartialOutput:   "half done",
	}

	prompt := ResumePrompt(cp)
	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "migrate the billing tables")
	assert.Contains(t, prompt, "schema.go")
	assert.Contains(t, prompt, "service.go")
	assert.Contains(t, prompt, "go build ./...")
	assert.Contains(t, prompt, "production deployment")
	assert.Contains(t, prompt, "Do not redo completed work")
}
