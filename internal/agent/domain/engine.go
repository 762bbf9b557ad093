package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fixpoint/internal/agent"
	"fixpoint/internal/agent/ports"
	fixerrors "fixpoint/internal/errors"
	tokenutil "fixpoint/internal/shared/token"
	"fixpoint/internal/shared/utils/id"
)

// CompletionDefaults defines optional overrides for inference behaviour.
type CompletionDefaults struct {
	Temperature   float64
	MaxTokens     int
	TopP          float64
	StopSequences []string
}

// EngineConfig captures the dependencies required to construct an Engine.
type EngineConfig struct {
	Logger              ports.Logger
	Clock               ports.Clock
	EventListener       EventListener
	Metrics             *agent.Metrics
	MaxToolConcurrency  int
	PromptTimeout       time.Duration
	VerificationEnabled bool
	SystemPrompt        string
	Completion          CompletionDefaults
}

// Engine drives the plan-act-verify-fix cycle for one task at a time. It owns
// no shared mutable state across tasks; everything task-scoped lives in the
// TaskContext passed to ExecuteTask.
type Engine struct {
	logger              ports.Logger
	clock               ports.Clock
	eventListener       EventListener
	metrics             *agent.Metrics
	maxToolConcurrency  int
	promptTimeout       time.Duration
	verificationEnabled bool
	systemPrompt        string
	completion          CompletionDefaults
}

const (
	defaultToolConcurrency = 5
	defaultPromptTimeout   = 300 * time.Second
)

// NewEngine constructs an Engine with defaults filled in.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = nopEngineLogger{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock()
	}
	concurrency := cfg.MaxToolConcurrency
	if concurrency <= 0 {
		concurrency = defaultToolConcurrency
	}
	promptTimeout := cfg.PromptTimeout
	if promptTimeout <= 0 {
		promptTimeout = defaultPromptTimeout
	}
	return &Engine{
		logger:              logger,
		clock:               clock,
		eventListener:       cfg.EventListener,
		metrics:             cfg.Metrics,
		maxToolConcurrency:  concurrency,
		promptTimeout:       promptTimeout,
		verificationEnabled: cfg.VerificationEnabled,
		systemPrompt:        cfg.SystemPrompt,
		completion:          cfg.Completion,
	}
}

type nopEngineLogger struct{}

func (nopEngineLogger) Debug(string, ...any) {}
func (nopEngineLogger) Info(string, ...any)  {}
func (nopEngineLogger) Warn(string, ...any)  {}
func (nopEngineLogger) Error(string, ...any) {}

// SetEventListener configures event emission for streaming consumers.
func (e *Engine) SetEventListener(listener EventListener) {
	e.eventListener = listener
}

func (e *Engine) emitEvent(event AgentEvent) {
	if e.eventListener != nil {
		e.eventListener.OnEvent(event)
	}
}

func (e *Engine) newBaseEvent(tc *TaskContext) BaseEvent {
	return newBaseEvent(tc.TaskID, tc.SessionID, e.clock.Now())
}

// iterationActivity tracks what one iteration actually did.
type iterationActivity struct {
	changedFiles []string
	commands     []string
	invocations  []toolInvocation
}

type toolInvocation struct {
	Name      string
	Arguments map[string]any
}

func (a *iterationActivity) empty() bool {
	return len(a.changedFiles) == 0 && len(a.commands) == 0
}

// ExecuteTask runs the main loop until verified success, a fatal condition,
// a human gate, or budget exhaustion. Exactly one terminal TaskCompleteEvent
// is emitted per invocation.
func (e *Engine) ExecuteTask(ctx context.Context, tc *TaskContext, services Services) (*TaskResult, error) {
	startTime := e.clock.Now()
	e.logger.Info("Starting task %s: %s", tc.TaskID, truncateForPrompt(tc.Request, 120))

	if e.metrics != nil {
		e.metrics.IncActiveTasks()
		defer e.metrics.DecActiveTasks()
	}

	e.emitEvent(&TaskStartEvent{
		BaseEvent:  e.newBaseEvent(tc),
		Request:    tc.Request,
		Complexity: tc.Complexity,
		Budget:     tc.MaxIterations,
	})

	e.ensureSystemPromptMessage(tc)
	tc.Messages = append(tc.Messages, ports.Message{Role: "user", Content: tc.Request})
	tc.Status = StatusExecuting

	var lastAnswer string

	for {
		if ctx.Err() != nil {
			e.logger.Info("Context cancelled, stopping execution: %v", ctx.Err())
			return e.finishTask(tc, StatusFailed, StopCancelled, lastAnswer, startTime), ctx.Err()
		}

		// Pending human input blocks everything else.
		if prompt := tc.PendingPrompt(); prompt != nil {
			if result, done := e.awaitPrompt(ctx, tc, services, prompt, startTime, lastAnswer); done {
				return result, nil
			}
		}

		// Checkpoint cadence in long-running mode, never mid-tool-execution.
		if tc.LongRunning && tc.CheckpointInterval > 0 && tc.IterationsSinceCheckpoint >= tc.CheckpointInterval {
			e.persistCheckpoint(ctx, tc, services, ports.CheckpointPeriodic, "")
		}

		// Loop ceiling runs before the inference call so a doomed task does
		// not waste budget on another round trip.
		report := DetectLoop(tc.ErrorSignatures)
		if report.Consecutive >= LoopCeiling {
			e.logger.Error("Unrecoverable loop: same error %d times in a row", report.Consecutive)
			result := e.finishTask(tc, StatusFailed, StopLoopDetected, lastAnswer, startTime)
			return result, nil
		}

		if tc.Iterations >= tc.MaxIterations {
			e.logger.Warn("Iteration budget (%d) exhausted", tc.MaxIterations)
			return e.finishTask(tc, StatusFailed, StopBudgetExhausted, lastAnswer, startTime), nil
		}

		tc.Iterations++
		tc.IterationsSinceCheckpoint++
		iterStart := e.clock.Now()
		e.logger.Info("=== Iteration %d/%d ===", tc.Iterations, tc.MaxIterations)

		e.emitEvent(&IterationStartEvent{
			BaseEvent:  e.newBaseEvent(tc),
			Iteration:  tc.Iterations,
			TotalIters: tc.MaxIterations,
			Status:     tc.Status,
		})

		resp, err := e.think(ctx, tc, services)
		if err != nil {
			if fatal, ok := fixerrors.AsFatal(err); ok {
				// Non-retryable inference failure: the remaining budget is
				// reported unused, not consumed.
				e.logger.Error("Fatal inference error (%s): %v", fatal.Kind, err)
				e.emitEvent(&ErrorEvent{
					BaseEvent:   e.newBaseEvent(tc),
					Iteration:   tc.Iterations,
					Phase:       "think",
					Error:       err,
					Recoverable: false,
				})
				return e.finishTask(tc, StatusFailed, StopFatalLLM, lastAnswer, startTime), nil
			}
			e.logger.Error("Think step failed: %v", err)
			e.emitEvent(&ErrorEvent{
				BaseEvent:   e.newBaseEvent(tc),
				Iteration:   tc.Iterations,
				Phase:       "think",
				Error:       err,
				Recoverable: false,
			})
			return e.finishTask(tc, StatusFailed, StopFatalLLM, lastAnswer, startTime), fmt.Errorf("think step failed: %w", err)
		}

		if trimmed := strings.TrimSpace(resp.Content); trimmed != "" {
			lastAnswer = trimmed
		}
		assistantMsg := ports.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		if strings.TrimSpace(resp.Content) != "" || len(resp.ToolCalls) > 0 {
			tc.Messages = append(tc.Messages, assistantMsg)
		}

		var activity iterationActivity
		if len(resp.ToolCalls) > 0 {
			activity = e.executeToolCalls(ctx, tc, resp.ToolCalls, services)
		}

		// Human gates only exist in long-running mode.
		if gate := DetectHumanGate(tc, resp.Content, activity.commands); gate.Triggered {
			e.persistCheckpoint(ctx, tc, services, ports.CheckpointInterruption, gate.Reason)
			e.emitEvent(&HumanGateEvent{
				BaseEvent: e.newBaseEvent(tc),
				Reason:    gate.Reason,
				Blocking:  gate.Blocking,
			})
			if gate.Blocking {
				e.logger.Warn("Blocking human gate: %s", gate.Reason)
				return e.finishTask(tc, StatusFailed, StopHumanGate, lastAnswer, startTime), nil
			}
			// Non-blocking gate: pause on a prompt and continue with the
			// user's answer on the next loop pass.
			tc.BlastRadiusGated = true
			if err := tc.RequestPrompt(buildGateQuestion(gate.Reason), e.clock.Now()); err != nil {
				e.logger.Warn("Gate prompt not registered: %v", err)
			}
		}

		if len(resp.ToolCalls) == 0 && activity.empty() {
			if tc.Status == StatusFixing {
				// The last verification round failed and nothing has passed
				// since. A narrated claim of success is not accepted.
				e.logger.Warn("Completion claimed while verification is failing; demanding a fix")
				tc.Messages = append(tc.Messages, ports.Message{
					Role:    "user",
					Content: buildUnverifiedClaimNudge(tc.RecentErrors(maxErrorLinesInGuidance)),
				})
				e.observeIteration(iterStart, "unverified_claim")
				continue
			}
			if IsActionRequest(tc.Request) && len(tc.ChangedFiles()) == 0 && len(tc.CommandsRun) == 0 {
				// The model narrated instead of acting. Demand a tool call.
				e.logger.Warn("Action request produced no tool call; injecting corrective instruction")
				tc.Messages = append(tc.Messages, ports.Message{
					Role:    "user",
					Content: buildNoToolCallNudge(tc.Request),
				})
				e.observeIteration(iterStart, "no_tool_call")
				continue
			}
			// Info-only task: the answer is the deliverable.
			tc.Status = StatusCompleted
			e.observeIteration(iterStart, "completed")
			return e.finishTask(tc, StatusCompleted, StopCompleted, lastAnswer, startTime), nil
		}

		if e.verificationEnabled && len(activity.changedFiles) > 0 {
			passed := e.verifyIteration(ctx, tc, services, activity)
			if passed {
				tc.Status = StatusCompleted
				e.observeIteration(iterStart, "completed")
				return e.finishTask(tc, StatusCompleted, StopCompleted, lastAnswer, startTime), nil
			}
			tc.Status = StatusFixing
			e.observeIteration(iterStart, "fixing")
			continue
		}

		tc.TokenCount = estimateMessageTokens(tc.Messages)
		e.observeIteration(iterStart, "continue")
	}
}

// awaitPrompt blocks on the single pending prompt. The bool result reports
// whether the task terminated (timeout or cancellation).
func (e *Engine) awaitPrompt(
	ctx context.Context,
	tc *TaskContext,
	services Services,
	prompt *PendingPrompt,
	startTime time.Time,
	lastAnswer string,
) (*TaskResult, bool) {
	e.emitEvent(&PromptRequestEvent{
		BaseEvent: e.newBaseEvent(tc),
		Question:  prompt.Question,
	})

	if services.Prompter == nil {
		e.logger.Warn("Prompt pending but no prompter wired; stopping")
		return e.finishTask(tc, StatusFailed, StopPromptTimeout, lastAnswer, startTime), true
	}

	answer, err := services.Prompter.Ask(ctx, prompt.Question, e.promptTimeout)
	if err != nil {
		e.logger.Warn("Prompt wait ended without response: %v", err)
		return e.finishTask(tc, StatusFailed, StopPromptTimeout, lastAnswer, startTime), true
	}

	tc.ClearPrompt()
	tc.Messages = append(tc.Messages, ports.Message{Role: "user", Content: answer})
	return nil, false
}

// think sends the current conversation to the inference service, streaming
// deltas out as events.
func (e *Engine) think(ctx context.Context, tc *TaskContext, services Services) (*ports.CompletionResponse, error) {
	requestID := id.NewRequestID()
	tools := services.Tools.List()

	e.logger.Debug("Inference request %s: messages=%d tools=%d", requestID, len(tc.Messages), len(tools))

	req := ports.CompletionRequest{
		Messages:    tc.Messages,
		Tools:       tools,
		Temperature: e.completion.Temperature,
		MaxTokens:   e.completion.MaxTokens,
		TopP:        e.completion.TopP,
		Metadata:    map[string]any{"request_id": requestID, "task_id": tc.TaskID},
	}
	if len(e.completion.StopSequences) > 0 {
		req.StopSequences = append([]string(nil), e.completion.StopSequences...)
	}

	callbacks := ports.CompletionStreamCallbacks{
		OnTextDelta: func(delta string) {
			e.emitEvent(&AssistantDeltaEvent{
				BaseEvent: e.newBaseEvent(tc),
				Iteration: tc.Iterations,
				Delta:     delta,
			})
		},
	}

	resp, err := services.LLM.StreamComplete(ctx, req, callbacks)
	if err != nil {
		return nil, err
	}

	e.emitEvent(&ThinkCompleteEvent{
		BaseEvent:     e.newBaseEvent(tc),
		Iteration:     tc.Iterations,
		Content:       resp.Content,
		ToolCallCount: len(resp.ToolCalls),
		StopReason:    resp.StopReason,
	})

	tc.TokenCount += resp.Usage.TotalTokens
	return resp, nil
}

func (e *Engine) ensureSystemPromptMessage(tc *TaskContext) {
	prompt := strings.TrimSpace(tc.SystemPrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(e.systemPrompt)
	}
	if prompt == "" {
		return
	}
	for idx := range tc.Messages {
		if strings.EqualFold(tc.Messages[idx].Role, "system") {
			tc.Messages[idx].Content = prompt
			return
		}
	}
	tc.Messages = append([]ports.Message{{Role: "system", Content: prompt}}, tc.Messages...)
}

// persistCheckpoint snapshots progress. Persistence failures are logged and
// swallowed: execution continues on in-memory state.
func (e *Engine) persistCheckpoint(ctx context.Context, tc *TaskContext, services Services, kind ports.CheckpointKind, reason string) {
	if services.Checkpoints == nil {
		return
	}
	cp := SnapshotCheckpoint(tc, kind, reason, e.clock.Now())
	checkpointID, err := services.Checkpoints.Save(ctx, cp)
	if err != nil {
		e.logger.Warn("Checkpoint save failed (non-fatal): %v", err)
		return
	}
	tc.LastCheckpointID = checkpointID
	tc.IterationsSinceCheckpoint = 0
	e.emitEvent(&CheckpointEvent{
		BaseEvent:    e.newBaseEvent(tc),
		CheckpointID: checkpointID,
		Iteration:    tc.Iterations,
		Kind:         kind,
	})
}

// finishTask emits the single terminal event and assembles the result.
func (e *Engine) finishTask(tc *TaskContext, status TaskStatus, stopReason, answer string, startTime time.Time) *TaskResult {
	tc.Status = status
	duration := e.clock.Now().Sub(startTime)
	unused := tc.MaxIterations - tc.Iterations
	if unused < 0 || tc.Complexity == ComplexityEnterprise {
		unused = 0
	}

	recent := tc.RecentErrors(5)
	result := &TaskResult{
		TaskID:           tc.TaskID,
		Status:           status,
		StopReason:       stopReason,
		Answer:           answer,
		Iterations:       tc.Iterations,
		UnusedIterations: unused,
		TokensUsed:       tc.TokenCount,
		Duration:         duration,
		RecentErrors:     recent,
		LastCheckpointID: tc.LastCheckpointID,
	}

	if e.metrics != nil {
		e.metrics.ObserveTaskDuration(string(status), stopReason, duration)
	}

	e.emitEvent(&TaskCompleteEvent{
		BaseEvent:        e.newBaseEvent(tc),
		Status:           status,
		StopReason:       stopReason,
		Answer:           answer,
		TotalIterations:  tc.Iterations,
		UnusedIterations: unused,
		TokensUsed:       tc.TokenCount,
		Duration:         duration,
		RecentErrors:     recent,
	})

	e.logger.Info("Task %s finished: status=%s stop_reason=%s iterations=%d", tc.TaskID, status, stopReason, tc.Iterations)
	return result
}

func (e *Engine) observeIteration(start time.Time, outcome string) {
	if e.metrics != nil {
		e.metrics.ObserveIterationDuration(outcome, e.clock.Now().Sub(start))
	}
}

func estimateMessageTokens(messages []ports.Message) int {
	total := 0
	for _, msg := range messages {
		total += tokenutil.EstimateFast(msg.Content)
	}
	return total
}
