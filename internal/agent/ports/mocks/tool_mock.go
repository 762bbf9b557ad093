package mocks

import (
	"context"
	"fmt"
	"time"

	"fixpoint/internal/agent/ports"
)

type MockToolRegistry struct {
	GetFunc      func(name string) (ports.ToolExecutor, error)
	ListFunc     func() []ports.ToolDefinition
	RegisterFunc func(tool ports.ToolExecutor) error
}

func (m *MockToolRegistry) Get(name string) (ports.ToolExecutor, error) {
	if m.GetFunc != nil {
		return m.GetFunc(name)
	}
	return &MockToolExecutor{}, nil
}

func (m *MockToolRegistry) List() []ports.ToolDefinition {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return []ports.ToolDefinition{}
}

func (m *MockToolRegistry) Register(tool ports.ToolExecutor) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(tool)
	}
	return nil
}

func (m *MockToolRegistry) Unregister(name string) error {
	return nil
}

type MockToolExecutor struct {
	ExecuteFunc  func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
	DefinitionFn func() ports.ToolDefinition
	MetadataFn   func() ports.ToolMetadata
}

func (m *MockToolExecutor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, call)
	}
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "Mock tool result",
	}, nil
}

func (m *MockToolExecutor) Definition() ports.ToolDefinition {
	if m.DefinitionFn != nil {
		return m.DefinitionFn()
	}
	return ports.ToolDefinition{Name: "mock_tool"}
}

func (m *MockToolExecutor) Metadata() ports.ToolMetadata {
	if m.MetadataFn != nil {
		return m.MetadataFn()
	}
	return ports.ToolMetadata{Name: "mock_tool"}
}

type MockCommandGuard struct {
	AuthorizeFunc func(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error)
}

func (m *MockCommandGuard) Authorize(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, req)
	}
	return &ports.CommandVerdict{Allowed: true, Command: req.Command, Risk: ports.RiskLow}, nil
}

type MockVerifier struct {
	DetectFunc        func(ctx context.Context, workspace string) ports.ProjectCommands
	VerifyFunc        func(ctx context.Context, workspace string, commands ports.ProjectCommands, runTests bool) []ports.VerificationResult
	QuickValidateFunc func(ctx context.Context, workspace string, files []string) (bool, string)
}

func (m *MockVerifier) DetectProjectCommands(ctx context.Context, workspace string) ports.ProjectCommands {
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, workspace)
	}
	return ports.ProjectCommands{}
}

func (m *MockVerifier) Verify(ctx context.Context, workspace string, commands ports.ProjectCommands, runTests bool) []ports.VerificationResult {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, workspace, commands, runTests)
	}
	return nil
}

func (m *MockVerifier) QuickValidate(ctx context.Context, workspace string, files []string) (bool, string) {
	if m.QuickValidateFunc != nil {
		return m.QuickValidateFunc(ctx, workspace, files)
	}
	return true, ""
}

type MockUserPrompter struct {
	AskFunc func(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

func (m *MockUserPrompter) Ask(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if m.AskFunc != nil {
		return m.AskFunc(ctx, prompt, timeout)
	}
	return "", fmt.Errorf("no prompt handler configured")
}

type MockCheckpointStore struct {
	SaveFunc   func(ctx context.Context, cp *ports.Checkpoint) (string, error)
	LoadFunc   func(ctx context.Context, id string) (*ports.Checkpoint, error)
	DeleteFunc func(ctx context.Context, id string) error
	ListFunc   func(ctx context.Context, userID, sessionID string) ([]*ports.Checkpoint, error)
}

func (m *MockCheckpointStore) Save(ctx context.Context, cp *ports.Checkpoint) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, cp)
	}
	if cp.ID == "" {
		return "", fmt.Errorf("missing checkpoint id")
	}
	return cp.ID, nil
}

func (m *MockCheckpointStore) Load(ctx context.Context, id string) (*ports.Checkpoint, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, id)
	}
	return nil, ports.ErrCheckpointNotFound
}

func (m *MockCheckpointStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockCheckpointStore) List(ctx context.Context, userID, sessionID string) ([]*ports.Checkpoint, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, sessionID)
	}
	return nil, nil
}
