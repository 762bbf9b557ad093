package domain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/agent/ports/mocks"
)

// trackingRegistry records execution order and the peak number of concurrent
// executions.
type trackingRegistry struct {
	mu         sync.Mutex
	order      []string
	inFlight   atomic.Int32
	peak       atomic.Int32
	delay      time.Duration
	resultFunc func(call ports.ToolCall) *ports.ToolResult
}

func (r *trackingRegistry) tool(mutating bool) ports.ToolExecutor {
	return &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Mutating: mutating}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			current := r.inFlight.Add(1)
			for {
				peak := r.peak.Load()
				if current <= peak || r.peak.CompareAndSwap(peak, current) {
					break
				}
			}
			if r.delay > 0 {
				time.Sleep(r.delay)
			}
			r.mu.Lock()
			r.order = append(r.order, call.ID)
			r.mu.Unlock()
			r.inFlight.Add(-1)

			if r.resultFunc != nil {
				return r.resultFunc(call), nil
			}
			return &ports.ToolResult{CallID: call.ID, Content: "ok " + call.ID}, nil
		},
	}
}

func (r *trackingRegistry) services() Services {
	return Services{
		LLM: &mocks.MockLLMClient{},
		Tools: &mocks.MockToolRegistry{
			GetFunc: func(name string) (ports.ToolExecutor, error) {
				switch name {
				case "read_file", "list_directory":
					return r.tool(false), nil
				case "write_file":
					return r.tool(true), nil
				default:
					return nil, fmt.Errorf("tool not found: %s", name)
				}
			},
		},
		Verifier: &mocks.MockVerifier{},
	}
}

func toolCtx() *TaskContext {
	return NewTaskContext("t1", "r", "/ws", ComplexityMedium, time.Now())
}

func TestExecuteToolCallsMergesResultsInOrder(t *testing.T) {
	reg := &trackingRegistry{delay: 2 * time.Millisecond}
	engine := NewEngine(EngineConfig{MaxToolConcurrency: 4})
	tc := toolCtx()

	calls := []ports.ToolCall{
		{ID: "c1", Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{ID: "c2", Name: "read_file", Arguments: map[string]any{"path": "b.go"}},
		{ID: "c3", Name: "read_file", Arguments: map[string]any{"path": "c.go"}},
	}
	engine.executeToolCalls(context.Background(), tc, calls, reg.services())

	require.Len(t, tc.Messages, 3)
	for i, call := range calls {
		assert.Equal(t, "tool", tc.Messages[i].Role)
		assert.Equal(t, call.ID, tc.Messages[i].ToolCallID)
		assert.Equal(t, "ok "+call.ID, tc.Messages[i].Content)
	}
}

func TestExecuteToolCallsReadsRunConcurrently(t *testing.T) {
	reg := &trackingRegistry{delay: 10 * time.Millisecond}
	engine := NewEngine(EngineConfig{MaxToolConcurrency: 4})

	var calls []ports.ToolCall
	for i := 0; i < 4; i++ {
		calls = append(calls, ports.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "read_file"})
	}
	engine.executeToolCalls(context.Background(), toolCtx(), calls, reg.services())

	assert.Greater(t, reg.peak.Load(), int32(1), "read-only calls overlap")
}

func TestExecuteToolCallsMutatingRunsSequentially(t *testing.T) {
	reg := &trackingRegistry{delay: 5 * time.Millisecond}
	engine := NewEngine(EngineConfig{MaxToolConcurrency: 4})

	calls := []ports.ToolCall{
		{ID: "w1", Name: "write_file"},
		{ID: "w2", Name: "write_file"},
		{ID: "w3", Name: "write_file"},
	}
	engine.executeToolCalls(context.Background(), toolCtx(), calls, reg.services())

	assert.Equal(t, int32(1), reg.peak.Load(), "mutating calls never overlap")
	assert.Equal(t, []string{"w1", "w2", "w3"}, reg.order)
}

func TestExecuteToolCallsBoundsConcurrency(t *testing.T) {
	reg := &trackingRegistry{delay: 10 * time.Millisecond}
	engine := NewEngine(EngineConfig{MaxToolConcurrency: 2})

	var calls []ports.ToolCall
	for i := 0; i < 8; i++ {
		calls = append(calls, ports.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "read_file"})
	}
	engine.executeToolCalls(context.Background(), toolCtx(), calls, reg.services())

	assert.LessOrEqual(t, reg.peak.Load(), int32(2))
}

func TestExecuteToolCallsUnknownToolBecomesErrorMessage(t *testing.T) {
	reg := &trackingRegistry{}
	engine := NewEngine(EngineConfig{})
	tc := toolCtx()

	engine.executeToolCalls(context.Background(), tc, []ports.ToolCall{
		{ID: "c1", Name: "frobnicate"},
	}, reg.services())

	require.Len(t, tc.Messages, 1)
	assert.Contains(t, tc.Messages[0].Content, "Error:")
	assert.Contains(t, tc.Messages[0].Content, "unknown tool")
}

func TestExecuteToolCallsRecordsActivity(t *testing.T) {
	reg := &trackingRegistry{
		resultFunc: func(call ports.ToolCall) *ports.ToolResult {
			return &ports.ToolResult{
				CallID:  call.ID,
				Content: "done",
				Metadata: map[string]any{
					"path":    "handler.go",
					"created": true,
				},
			}
		},
	}
	engine := NewEngine(EngineConfig{})
	tc := toolCtx()

	activity := engine.executeToolCalls(context.Background(), tc, []ports.ToolCall{
		{ID: "w1", Name: "write_file"},
	}, reg.services())

	assert.Equal(t, []string{"handler.go"}, tc.FilesCreated)
	assert.Equal(t, []string{"handler.go"}, activity.changedFiles)
}

func TestExecuteToolCallsMalformedArgumentsBecomeErrorMessage(t *testing.T) {
	reg := &trackingRegistry{}
	engine := NewEngine(EngineConfig{})
	tc := toolCtx()

	engine.executeToolCalls(context.Background(), tc, []ports.ToolCall{
		{ID: "c1", Name: "read_file", ArgumentError: "unparseable tool arguments: unexpected token"},
	}, reg.services())

	assert.Empty(t, reg.order, "a call with undecodable arguments never executes")
	require.Len(t, tc.Messages, 1)
	assert.Contains(t, tc.Messages[0].Content, "malformed tool arguments")
}

func TestExecuteToolCallsRecordsFailedCommands(t *testing.T) {
	reg := &trackingRegistry{
		resultFunc: func(call ports.ToolCall) *ports.ToolResult {
			return &ports.ToolResult{
				CallID: call.ID,
				Error:  fmt.Errorf("exit status 1"),
				Metadata: map[string]any{
					"command":   "go test ./...",
					"exit_code": 1,
					"success":   false,
				},
			}
		},
	}
	engine := NewEngine(EngineConfig{})
	tc := toolCtx()

	activity := engine.executeToolCalls(context.Background(), tc, []ports.ToolCall{
		{ID: "c1", Name: "write_file", Arguments: map[string]any{"command": "go test ./..."}},
	}, reg.services())

	assert.Equal(t, []string{"go test ./..."}, tc.CommandsRun, "a command that ran and failed still ran")
	assert.Equal(t, []string{"go test ./..."}, activity.commands)
	assert.Empty(t, activity.changedFiles)
}

func TestAuthorizeCommandDenialBlocksExecution(t *testing.T) {
	guard := &mocks.MockCommandGuard{
		AuthorizeFunc: func(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error) {
			return &ports.CommandVerdict{
				Allowed:   false,
				Command:   req.Command,
				Risk:      ports.RiskHigh,
				Dangerous: true,
				Decision:  ports.DecisionDeny,
				Reason:    "the user denied this command",
			}, nil
		},
	}

	executed := false
	dangerous := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "run_command", Mutating: true, Dangerous: true}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			executed = true
			return &ports.ToolResult{CallID: call.ID}, nil
		},
	}

	services := Services{
		LLM:   &mocks.MockLLMClient{},
		Guard: guard,
		Tools: &mocks.MockToolRegistry{
			GetFunc: func(name string) (ports.ToolExecutor, error) { return dangerous, nil },
		},
		Verifier: &mocks.MockVerifier{},
	}

	engine := NewEngine(EngineConfig{})
	tc := toolCtx()
	engine.executeToolCalls(context.Background(), tc, []ports.ToolCall{
		{ID: "c1", Name: "run_command", Arguments: map[string]any{"command": "rm -rf build"}},
	}, services)

	assert.False(t, executed, "a denied command never reaches the tool")
	require.Len(t, tc.Messages, 1)
	assert.Contains(t, tc.Messages[0].Content, "command not executed")
}

func TestAuthorizeCommandCarriesConsentIDThroughResolution(t *testing.T) {
	guard := &mocks.MockCommandGuard{
		AuthorizeFunc: func(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error) {
			req.Notify(ports.ConsentEvent{
				ConsentID:   "consent-1",
				Command:     req.Command,
				DangerLevel: ports.RiskHigh,
			})
			return &ports.CommandVerdict{
				Allowed:   true,
				Command:   req.Command,
				Risk:      ports.RiskHigh,
				Dangerous: true,
				Decision:  ports.DecisionAllowOnce,
			}, nil
		},
	}

	dangerous := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "run_command", Mutating: true, Dangerous: true}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			return &ports.ToolResult{CallID: call.ID, Content: "ok"}, nil
		},
	}

	services := Services{
		LLM:   &mocks.MockLLMClient{},
		Guard: guard,
		Tools: &mocks.MockToolRegistry{
			GetFunc: func(name string) (ports.ToolExecutor, error) { return dangerous, nil },
		},
		Verifier: &mocks.MockVerifier{},
	}

	var resolved *ConsentResolvedEvent
	engine := NewEngine(EngineConfig{})
	engine.SetEventListener(ports.EventListenerFunc(func(event AgentEvent) {
		if ev, ok := event.(*ConsentResolvedEvent); ok {
			resolved = ev
		}
	}))

	engine.executeToolCalls(context.Background(), toolCtx(), []ports.ToolCall{
		{ID: "c1", Name: "run_command", Arguments: map[string]any{"command": "rm -rf build"}},
	}, services)

	require.NotNil(t, resolved)
	assert.Equal(t, "consent-1", resolved.ConsentID)
	assert.Equal(t, "rm -rf build", resolved.Command)
	assert.Equal(t, ports.DecisionAllowOnce, resolved.Decision)
	assert.True(t, resolved.Allowed)
}

func TestAuthorizeCommandRewritesToAlternative(t *testing.T) {
	guard := &mocks.MockCommandGuard{
		AuthorizeFunc: func(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error) {
			return &ports.CommandVerdict{
				Allowed:   true,
				Command:   "git push --force-with-lease",
				Risk:      ports.RiskCritical,
				Dangerous: true,
				Decision:  ports.DecisionAlternative,
			}, nil
		},
	}

	var ranCommand string
	dangerous := &mocks.MockToolExecutor{
		MetadataFn: func() ports.ToolMetadata {
			return ports.ToolMetadata{Name: "run_command", Mutating: true, Dangerous: true}
		},
		ExecuteFunc: func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
			ranCommand, _ = call.Arguments["command"].(string)
			return &ports.ToolResult{CallID: call.ID, Content: "ok"}, nil
		},
	}

	services := Services{
		LLM:   &mocks.MockLLMClient{},
		Guard: guard,
		Tools: &mocks.MockToolRegistry{
			GetFunc: func(name string) (ports.ToolExecutor, error) { return dangerous, nil },
		},
		Verifier: &mocks.MockVerifier{},
	}

	engine := NewEngine(EngineConfig{})
	engine.executeToolCalls(context.Background(), toolCtx(), []ports.ToolCall{
		{ID: "c1", Name: "run_command", Arguments: map[string]any{"command": "git push --force"}},
	}, services)

	assert.Equal(t, "git push --force-with-lease", ranCommand)
}
