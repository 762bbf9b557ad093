package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"fixpoint/internal/agent/ports"
)

// executeToolCalls runs all tool calls of one iteration. Consecutive read-only
// calls run concurrently under a bounded semaphore; mutating calls run strictly
// one at a time in the order the model issued them. Results are merged back in
// the original order so the conversation transcript stays deterministic.
func (e *Engine) executeToolCalls(ctx context.Context, tc *TaskContext, calls []ports.ToolCall, services Services) iterationActivity {
	var activity iterationActivity
	results := make([]*ports.ToolResult, len(calls))

	i := 0
	for i < len(calls) {
		if e.isReadOnly(services, calls[i]) {
			j := i
			for j < len(calls) && e.isReadOnly(services, calls[j]) {
				j++
			}
			e.executeReadBatch(ctx, tc, calls[i:j], services, results[i:j])
			i = j
			continue
		}
		results[i] = e.executeSingle(ctx, tc, calls[i], services)
		i++
	}

	for idx, call := range calls {
		result := results[idx]
		if result == nil {
			result = errorResult(call.ID, fmt.Errorf("tool %q produced no result", call.Name))
		}

		content := result.Content
		if result.Error != nil {
			content = "Error: " + result.Error.Error()
		}
		if strings.TrimSpace(content) == "" {
			content = "(no output)"
		}
		tc.Messages = append(tc.Messages, ports.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
		})

		activity.invocations = append(activity.invocations, toolInvocation{
			Name:      call.Name,
			Arguments: call.Arguments,
		})
		e.recordActivity(tc, result, &activity)
	}

	return activity
}

// isReadOnly reports whether a call's tool is known and side-effect free.
// Unknown tools are treated as mutating so their error result stays in order.
func (e *Engine) isReadOnly(services Services, call ports.ToolCall) bool {
	tool, err := services.Tools.Get(call.Name)
	if err != nil {
		return false
	}
	return !tool.Metadata().Mutating
}

// executeReadBatch fans a run of read-only calls out over the bounded
// semaphore. Each slot in out corresponds to the call at the same index.
func (e *Engine) executeReadBatch(ctx context.Context, tc *TaskContext, calls []ports.ToolCall, services Services, out []*ports.ToolResult) {
	sem := semaphore.NewWeighted(int64(e.maxToolConcurrency))
	var wg sync.WaitGroup

	for idx := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				out[i] = errorResult(calls[i].ID, err)
				return
			}
			defer sem.Release(1)
			out[i] = e.executeSingle(ctx, tc, calls[i], services)
		}(idx)
	}

	wg.Wait()
}

// executeSingle runs one tool call end to end, including consent mediation for
// dangerous tools, and emits the start/complete event pair.
func (e *Engine) executeSingle(ctx context.Context, tc *TaskContext, call ports.ToolCall, services Services) *ports.ToolResult {
	start := e.clock.Now()
	e.emitEvent(&ToolCallStartEvent{
		BaseEvent: e.newBaseEvent(tc),
		Iteration: tc.Iterations,
		CallID:    call.ID,
		ToolName:  call.Name,
		Arguments: call.Arguments,
	})

	result := e.runToolCall(ctx, tc, call, services)

	duration := e.clock.Now().Sub(start)
	e.emitEvent(&ToolCallCompleteEvent{
		BaseEvent: e.newBaseEvent(tc),
		CallID:    call.ID,
		ToolName:  call.Name,
		Result:    truncateForPrompt(result.Content, 500),
		Error:     result.Error,
		Duration:  duration,
	})
	if e.metrics != nil {
		e.metrics.ObserveToolDuration(call.Name, result.Error == nil, duration)
	}
	if result.Error != nil {
		e.logger.Warn("Tool %s failed in %v: %v", call.Name, duration, result.Error)
	} else {
		e.logger.Debug("Tool %s finished in %v", call.Name, duration)
	}
	return result
}

func (e *Engine) runToolCall(ctx context.Context, tc *TaskContext, call ports.ToolCall, services Services) *ports.ToolResult {
	if call.ArgumentError != "" {
		// The client could not decode the arguments even after repair.
		// Executing with nil arguments would be a different call than the
		// model asked for; surface the decode failure instead.
		return errorResult(call.ID, fmt.Errorf("malformed tool arguments: %s", call.ArgumentError))
	}

	tool, err := services.Tools.Get(call.Name)
	if err != nil {
		return errorResult(call.ID, fmt.Errorf("unknown tool %q", call.Name))
	}

	if tool.Metadata().Dangerous && services.Guard != nil {
		if blocked := e.authorizeCommand(ctx, tc, &call, services); blocked != nil {
			return blocked
		}
	}

	result, err := tool.Execute(ctx, call)
	if err != nil {
		// Execution failures are recoverable: the model sees them as tool
		// output and decides what to do next.
		return errorResult(call.ID, err)
	}
	if result == nil {
		result = &ports.ToolResult{CallID: call.ID}
	}
	if result.CallID == "" {
		result.CallID = call.ID
	}
	return result
}

// authorizeCommand routes a dangerous tool's command through the consent
// broker. A nil return means execution may proceed (possibly with the command
// argument rewritten to an approved alternative); a non-nil result is the
// blocked outcome to surface to the model.
func (e *Engine) authorizeCommand(ctx context.Context, tc *TaskContext, call *ports.ToolCall, services Services) *ports.ToolResult {
	command, _ := call.Arguments["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil
	}

	workingDir, _ := call.Arguments["working_dir"].(string)
	if workingDir == "" {
		workingDir = tc.Workspace
	}

	// Notify runs synchronously inside Authorize, before the broker polls.
	var consentID string
	verdict, err := services.Guard.Authorize(ctx, ports.AuthorizationRequest{
		UserID:     tc.UserID,
		Command:    command,
		WorkingDir: workingDir,
		Workspace:  tc.Workspace,
		Notify: func(event ports.ConsentEvent) {
			consentID = event.ConsentID
			e.emitEvent(&ConsentRequiredEvent{
				BaseEvent: e.newBaseEvent(tc),
				Consent:   event,
			})
		},
	})
	if err != nil {
		return errorResult(call.ID, fmt.Errorf("command authorization failed: %w", err))
	}

	if verdict.Decision != "" && verdict.Decision != ports.DecisionPending {
		e.emitEvent(&ConsentResolvedEvent{
			BaseEvent: e.newBaseEvent(tc),
			ConsentID: consentID,
			Command:   command,
			Decision:  verdict.Decision,
			Allowed:   verdict.Allowed,
		})
	}

	if !verdict.Allowed {
		reason := verdict.Reason
		if reason == "" {
			reason = "the user denied this command"
		}
		e.logger.Info("Command blocked: %s (%s)", command, reason)
		return errorResult(call.ID, fmt.Errorf("command not executed: %s", reason))
	}

	if verdict.Command != "" && verdict.Command != command {
		// The user approved an alternative; execute that instead.
		rewritten := make(map[string]any, len(call.Arguments))
		for k, v := range call.Arguments {
			rewritten[k] = v
		}
		rewritten["command"] = verdict.Command
		call.Arguments = rewritten
		e.logger.Info("Command replaced by approved alternative: %s", verdict.Command)
	}
	if verdict.BackupLocation != "" {
		e.logger.Info("Pre-execution backup at %s", verdict.BackupLocation)
	}
	return nil
}

// recordActivity updates task-level and iteration-level bookkeeping from a
// tool result's metadata. Tools report their effects with the keys path,
// created, modified, read and command.
func (e *Engine) recordActivity(tc *TaskContext, result *ports.ToolResult, activity *iterationActivity) {
	if result.Metadata == nil {
		return
	}

	// A command that ran and failed still ran: it counts for checkpoints
	// and gate detection. Results blocked before execution carry no metadata.
	if command, ok := result.Metadata["command"].(string); ok && command != "" {
		tc.RecordCommand(command)
		activity.commands = append(activity.commands, command)
	}

	if result.Error != nil {
		return
	}

	path, _ := result.Metadata["path"].(string)
	if path != "" {
		switch {
		case metaBool(result.Metadata, "created"):
			tc.RecordFileCreated(path)
			activity.changedFiles = appendUnique(activity.changedFiles, path)
		case metaBool(result.Metadata, "modified"):
			tc.RecordFileModified(path)
			activity.changedFiles = appendUnique(activity.changedFiles, path)
		case metaBool(result.Metadata, "read"):
			tc.RecordFileRead(path)
		}
	}
}

func metaBool(metadata map[string]any, key string) bool {
	value, ok := metadata[key].(bool)
	return ok && value
}

func errorResult(callID string, err error) *ports.ToolResult {
	return &ports.ToolResult{CallID: callID, Error: err}
}
