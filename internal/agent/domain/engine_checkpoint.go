package domain

import (
	"fmt"
	"strings"
	"time"

	"fixpoint/internal/agent/ports"
)

// SnapshotCheckpoint captures the resumable parts of a task's progress. The
// conversation transcript is deliberately excluded: a resumed task rebuilds
// its prompt from the recorded work summary instead of replaying messages.
func SnapshotCheckpoint(tc *TaskContext, kind ports.CheckpointKind, reason string, now time.Time) *ports.Checkpoint {
	partial := ""
	for i := len(tc.Messages) - 1; i >= 0; i-- {
		if tc.Messages[i].Role == "assistant" && tc.Messages[i].Content != "" {
			partial = truncateForPrompt(tc.Messages[i].Content, 2000)
			break
		}
	}

	return &ports.Checkpoint{
		TaskID:          tc.TaskID,
		UserID:          tc.UserID,
		SessionID:       tc.SessionID,
		Kind:            kind,
		Status:          string(tc.Status),
		Request:         tc.Request,
		Workspace:       tc.Workspace,
		Iteration:       tc.Iterations,
		FilesRead:       append([]string(nil), tc.FilesRead...),
		FilesCreated:    append([]string(nil), tc.FilesCreated...),
		FilesModified:   append([]string(nil), tc.FilesModified...),
		CommandsRun:     append([]string(nil), tc.CommandsRun...),
		PartialOutput:   partial,
		InterruptReason: reason,
		CreatedAt:       now,
	}
}

// RestoreTaskContext rebuilds a TaskContext from a checkpoint for explicit
// resume. The iteration counter continues where it left off; the budget is
// re-derived from the tier so a resumed task cannot mint extra iterations.
func RestoreTaskContext(cp *ports.Checkpoint, complexity ComplexityTier, now time.Time) *TaskContext {
	tc := NewTaskContext(cp.TaskID, cp.Request, cp.Workspace, complexity, now)
	tc.UserID = cp.UserID
	tc.SessionID = cp.SessionID
	tc.Iterations = cp.Iteration
	tc.FilesRead = append([]string(nil), cp.FilesRead...)
	tc.FilesCreated = append([]string(nil), cp.FilesCreated...)
	tc.FilesModified = append([]string(nil), cp.FilesModified...)
	tc.CommandsRun = append([]string(nil), cp.CommandsRun...)
	tc.LastCheckpointID = cp.ID
	tc.Status = StatusExecuting
	return tc
}

// ResumePrompt renders the context-restoration message prepended to a resumed
// task's conversation so the model knows what already happened.
func ResumePrompt(cp *ports.Checkpoint) string {
	var b strings.Builder
	b.WriteString("This task is being resumed from a saved checkpoint.\n")
	fmt.Fprintf(&b, "Original request: %s\n", cp.Request)
	if len(cp.FilesCreated) > 0 {
		fmt.Fprintf(&b, "Files already created: %s\n", strings.Join(cp.FilesCreated, ", "))
	}
	if len(cp.FilesModified) > 0 {
		fmt.Fprintf(&b, "Files already modified: %s\n", strings.Join(cp.FilesModified, ", "))
	}
	if len(cp.CommandsRun) > 0 {
		fmt.Fprintf(&b, "Commands already run: %s\n", strings.Join(tailStrings(cp.CommandsRun, 10), ", "))
	}
	if cp.InterruptReason != "" {
		fmt.Fprintf(&b, "Interrupted because: %s\n", cp.InterruptReason)
	}
	if cp.PartialOutput != "" {
		fmt.Fprintf(&b, "Last progress note:\n%s\n", cp.PartialOutput)
	}
	b.WriteString("Continue from this state. Do not redo completed work.")
	return b.String()
}

func tailStrings(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
