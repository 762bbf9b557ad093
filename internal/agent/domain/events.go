package domain

import (
	"time"

	"fixpoint/internal/agent/ports"
)

// Re-export the event listener contract defined at the port layer.
type AgentEvent = ports.AgentEvent
type EventListener = ports.EventListener

// BaseEvent provides common fields for all events
type BaseEvent struct {
	timestamp time.Time
	taskID    string
	sessionID string
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *BaseEvent) GetTaskID() string {
	return e.taskID
}

func (e *BaseEvent) GetSessionID() string {
	return e.sessionID
}

func newBaseEvent(taskID, sessionID string, ts time.Time) BaseEvent {
	return BaseEvent{timestamp: ts, taskID: taskID, sessionID: sessionID}
}

// TaskStartEvent - emitted once when the engine accepts a task
type TaskStartEvent struct {
	BaseEvent
	Request    string
	Complexity ComplexityTier
	Budget     int
}

func (e *TaskStartEvent) EventType() string { return "task_start" }

// IterationStartEvent - emitted at start of each iteration
type IterationStartEvent struct {
	BaseEvent
	Iteration  int
	TotalIters int
	Status     TaskStatus
}

func (e *IterationStartEvent) EventType() string { return "iteration_start" }

// AssistantDeltaEvent - incremental assistant text while streaming
type AssistantDeltaEvent struct {
	BaseEvent
	Iteration int
	Delta     string
}

func (e *AssistantDeltaEvent) EventType() string { return "assistant_delta" }

// ThinkCompleteEvent - emitted when the inference response is fully received
type ThinkCompleteEvent struct {
	BaseEvent
	Iteration     int
	Content       string
	ToolCallCount int
	StopReason    string
}

func (e *ThinkCompleteEvent) EventType() string { return "think_complete" }

// ToolCallStartEvent - emitted when tool execution begins
type ToolCallStartEvent struct {
	BaseEvent
	Iteration int
	CallID    string
	ToolName  string
	Arguments map[string]any
}

func (e *ToolCallStartEvent) EventType() string { return "tool_call_start" }

// ToolCallCompleteEvent - emitted when tool execution finishes
type ToolCallCompleteEvent struct {
	BaseEvent
	CallID   string
	ToolName string
	Result   string
	Error    error
	Duration time.Duration
}

func (e *ToolCallCompleteEvent) EventType() string { return "tool_call_complete" }

// ConsentRequiredEvent - a dangerous command is blocked on a human decision
type ConsentRequiredEvent struct {
	BaseEvent
	Consent ports.ConsentEvent
}

func (e *ConsentRequiredEvent) EventType() string { return "consent_required" }

// ConsentResolvedEvent - the pending consent request was decided
type ConsentResolvedEvent struct {
	BaseEvent
	ConsentID string
	Command   string
	Decision  ports.ConsentDecision
	Allowed   bool
}

func (e *ConsentResolvedEvent) EventType() string { return "consent_resolved" }

// VerificationEvent - one verification pass finished
type VerificationEvent struct {
	BaseEvent
	Iteration int
	Results   []ports.VerificationResult
	Passed    bool
	Quick     bool
}

func (e *VerificationEvent) EventType() string { return "verification" }

// LoopWarningEvent - the failure detector flagged a repeating error
type LoopWarningEvent struct {
	BaseEvent
	Iteration   int
	Severity    LoopSeverity
	Consecutive int
	Signature   *ErrorSignature
	Suggestions []string
}

func (e *LoopWarningEvent) EventType() string { return "loop_warning" }

// CheckpointEvent - progress snapshot persisted
type CheckpointEvent struct {
	BaseEvent
	CheckpointID string
	Iteration    int
	Kind         ports.CheckpointKind
}

func (e *CheckpointEvent) EventType() string { return "checkpoint" }

// PromptRequestEvent - the engine is blocked on human input
type PromptRequestEvent struct {
	BaseEvent
	Question string
}

func (e *PromptRequestEvent) EventType() string { return "prompt_request" }

// HumanGateEvent - a blocking human sign-off point was detected
type HumanGateEvent struct {
	BaseEvent
	Reason   string
	Blocking bool
}

func (e *HumanGateEvent) EventType() string { return "human_gate" }

// ErrorEvent - a recoverable or fatal error occurred during an iteration
type ErrorEvent struct {
	BaseEvent
	Iteration   int
	Phase       string
	Error       error
	Recoverable bool
}

func (e *ErrorEvent) EventType() string { return "error" }

// TaskCompleteEvent - the single terminal event of every task
type TaskCompleteEvent struct {
	BaseEvent
	Status           TaskStatus
	StopReason       string
	Answer           string
	TotalIterations  int
	UnusedIterations int
	TokensUsed       int
	Duration         time.Duration
	RecentErrors     []string
}

func (e *TaskCompleteEvent) EventType() string { return "task_complete" }

// StreamListener returns a listener/channel pair: every event the engine
// emits is delivered on the channel in order, and the channel is closed after
// the terminal event. Callers must drain the channel.
func StreamListener(buffer int) (EventListener, <-chan AgentEvent) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan AgentEvent, buffer)
	listener := ports.EventListenerFunc(func(event AgentEvent) {
		ch <- event
		if _, terminal := event.(*TaskCompleteEvent); terminal {
			close(ch)
		}
	})
	return listener, ch
}
