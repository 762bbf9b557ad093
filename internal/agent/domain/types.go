package domain

import (
	"errors"
	"time"

	"fixpoint/internal/agent/ports"
)

// TaskStatus tracks where a task attempt is in its lifecycle.
type TaskStatus string

const (
	StatusPlanning  TaskStatus = "planning"
	StatusExecuting TaskStatus = "executing"
	StatusVerifying TaskStatus = "verifying"
	StatusFixing    TaskStatus = "fixing"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// ComplexityTier sizes the iteration budget of a task attempt.
type ComplexityTier string

const (
	ComplexitySimple     ComplexityTier = "simple"
	ComplexityMedium     ComplexityTier = "medium"
	ComplexityComplex    ComplexityTier = "complex"
	ComplexityEnterprise ComplexityTier = "enterprise"
)

// enterpriseBudget is effectively unlimited; enterprise tasks are bounded by
// checkpoint cadence and external gates instead.
const enterpriseBudget = 1000

// IterationBudget returns the iteration ceiling for the tier.
func (t ComplexityTier) IterationBudget() int {
	switch t {
	case ComplexitySimple:
		return 8
	case ComplexityMedium:
		return 15
	case ComplexityComplex:
		return 25
	case ComplexityEnterprise:
		return enterpriseBudget
	default:
		return 15
	}
}

// Stop reasons carried by the terminal event of a task.
const (
	StopCompleted       = "completed"
	StopBudgetExhausted = "budget_exhausted"
	StopFatalLLM        = "llm_fatal"
	StopLoopDetected    = "loop_detected"
	StopPromptTimeout   = "prompt_timeout"
	StopHumanGate       = "human_gate_pending"
	StopCancelled       = "cancelled"
)

// ErrorSignature is a normalized (kind, file, pattern) triple used to detect
// repeated failures. Iteration records when it was observed and is excluded
// from matching.
type ErrorSignature struct {
	Kind      ports.VerificationKind `json:"kind"`
	File      string                 `json:"file"`
	Pattern   string                 `json:"pattern"`
	Iteration int                    `json:"iteration"`
}

// Matches reports signature equality over the non-iteration fields.
func (s ErrorSignature) Matches(other ErrorSignature) bool {
	return s.Kind == other.Kind && s.File == other.File && s.Pattern == other.Pattern
}

// FailedApproach records one failed verification round: what was attempted,
// which files were touched, and a truncated error summary. Read-only history
// used to steer the next prompt.
type FailedApproach struct {
	Iteration    int      `json:"iteration"`
	Description  string   `json:"description"`
	FilesTouched []string `json:"files_touched,omitempty"`
	ErrorSummary string   `json:"error_summary"`
}

// PendingPrompt is the single outstanding human-input request of a task.
type PendingPrompt struct {
	Question  string
	CreatedAt time.Time
}

// ErrPromptPending is returned when a second prompt is requested while one is
// outstanding. Prompts never stack.
var ErrPromptPending = errors.New("a prompt is already pending for this task")

// TaskContext is the mutable state of one task attempt across iterations.
type TaskContext struct {
	TaskID    string
	SessionID string
	UserID    string
	Request   string
	Workspace string

	Complexity    ComplexityTier
	Status        TaskStatus
	Iterations    int
	MaxIterations int

	SystemPrompt string
	Messages     []ports.Message
	TokenCount   int

	FilesRead     []string
	FilesCreated  []string
	FilesModified []string
	CommandsRun   []string

	VerificationHistory []ports.VerificationResult
	ErrorSignatures     []ErrorSignature
	FailedApproaches    []FailedApproach

	// LongRunning enables checkpoint cadence and human-gate detection.
	LongRunning bool
	// BlastRadiusGated records that the large change set was already
	// surfaced for sign-off; the gate fires at most once per task.
	BlastRadiusGated          bool
	CheckpointInterval        int
	IterationsSinceCheckpoint int
	LastCheckpointID          string

	StartedAt time.Time

	pendingPrompt *PendingPrompt
}

// NewTaskContext sizes a fresh context for one task attempt.
func NewTaskContext(taskID, request, workspace string, complexity ComplexityTier, now time.Time) *TaskContext {
	return &TaskContext{
		TaskID:        taskID,
		Request:       request,
		Workspace:     workspace,
		Complexity:    complexity,
		Status:        StatusPlanning,
		MaxIterations: complexity.IterationBudget(),
		StartedAt:     now,
	}
}

// RequestPrompt registers a pending human-input prompt. At most one prompt is
// outstanding at any time; a second request fails explicitly.
func (c *TaskContext) RequestPrompt(question string, now time.Time) error {
	if c.pendingPrompt != nil {
		return ErrPromptPending
	}
	c.pendingPrompt = &PendingPrompt{Question: question, CreatedAt: now}
	return nil
}

// PendingPrompt returns the outstanding prompt, nil when none.
func (c *TaskContext) PendingPrompt() *PendingPrompt {
	return c.pendingPrompt
}

// ClearPrompt resolves the outstanding prompt.
func (c *TaskContext) ClearPrompt() {
	c.pendingPrompt = nil
}

// RecordFileRead tracks a file read, deduplicated.
func (c *TaskContext) RecordFileRead(path string) {
	c.FilesRead = appendUnique(c.FilesRead, path)
}

// RecordFileCreated tracks a newly created file.
func (c *TaskContext) RecordFileCreated(path string) {
	c.FilesCreated = appendUnique(c.FilesCreated, path)
}

// RecordFileModified tracks a modified file. Files already recorded as
// created stay in the created list only.
func (c *TaskContext) RecordFileModified(path string) {
	for _, existing := range c.FilesCreated {
		if existing == path {
			return
		}
	}
	c.FilesModified = appendUnique(c.FilesModified, path)
}

// RecordCommand tracks an executed shell command.
func (c *TaskContext) RecordCommand(command string) {
	c.CommandsRun = append(c.CommandsRun, command)
}

// ChangedFiles returns every file created or modified so far.
func (c *TaskContext) ChangedFiles() []string {
	out := make([]string, 0, len(c.FilesCreated)+len(c.FilesModified))
	out = append(out, c.FilesCreated...)
	out = append(out, c.FilesModified...)
	return out
}

// RecentErrors returns up to limit most recent error lines from the
// verification history, newest last.
func (c *TaskContext) RecentErrors(limit int) []string {
	var out []string
	for _, result := range c.VerificationHistory {
		if result.Success {
			continue
		}
		out = append(out, result.Errors...)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// TaskResult is the outcome of one task attempt.
type TaskResult struct {
	TaskID           string
	Status           TaskStatus
	StopReason       string
	Answer           string
	Iterations       int
	UnusedIterations int
	TokensUsed       int
	Duration         time.Duration
	RecentErrors     []string
	LastCheckpointID string
}

// Services bundles the external collaborators the engine composes.
type Services struct {
	LLM         ports.StreamingLLMClient
	Tools       ports.ToolRegistry
	Guard       ports.CommandGuard
	Verifier    ports.Verifier
	Checkpoints ports.CheckpointStore
	Prompter    ports.UserPrompter
}
