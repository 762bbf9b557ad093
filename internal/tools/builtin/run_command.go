package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"fixpoint/internal/agent/ports"
)

// Command timeout tiers. Package-manager and build invocations are routinely
// slow, so they get a higher floor; nothing may exceed the ceiling.
const (
	defaultCommandTimeout = 300 * time.Second
	packageManagerFloor   = 1200 * time.Second
	commandTimeoutCeiling = 1800 * time.Second
	maxCommandOutput      = 64 * 1024
)

var packageManagerPrefixes = []string{
	"npm install", "npm ci", "yarn install", "yarn add", "pnpm install",
	"pip install", "pip3 install", "poetry install", "uv pip install",
	"cargo build", "cargo install", "go mod download",
	"apt-get install", "apt install", "brew install", "bundle install",
	"mvn install", "gradle build", "composer install",
}

type runCommand struct {
	workspace *Workspace
}

// NewRunCommand returns the run_command tool. It is dangerous: the engine
// routes every invocation through the consent broker before Execute runs.
func NewRunCommand(workspace *Workspace) ports.ToolExecutor {
	return &runCommand{workspace: workspace}
}

func (t *runCommand) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	command, ok := stringArg(call.Arguments, "command")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'command'")}, nil
	}

	workingDir := t.workspace.Root()
	if dir, ok := stringArg(call.Arguments, "working_dir"); ok {
		resolved, err := t.workspace.Resolve(dir)
		if err != nil {
			return &ports.ToolResult{CallID: call.ID, Error: err}, nil
		}
		workingDir = resolved
	}

	timeout := commandTimeout(command, call.Arguments)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = workingDir
	// Own process group so a timeout kills the whole tree, not just bash.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("start command: %w", err)}, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var runErr error
	timedOut := false
	select {
	case runErr = <-done:
	case <-ctx.Done():
		timedOut = true
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			_ = cmd.Process.Kill()
		}
		<-done
		runErr = fmt.Errorf("command timed out after %v", timeout)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	output := combineOutput(stdout.String(), stderr.String())
	if len(output) > maxCommandOutput {
		output = output[:maxCommandOutput] + "\n... (output truncated)"
	}
	if output == "" {
		if runErr != nil {
			output = fmt.Sprintf("exit code %d (no output)", exitCode)
		} else {
			output = "command completed with no output"
		}
	}

	metadata := map[string]any{
		"command":   command,
		"exit_code": exitCode,
		"success":   runErr == nil,
	}
	if timedOut {
		metadata["timed_out"] = true
	}

	result := &ports.ToolResult{
		CallID:   call.ID,
		Content:  output,
		Metadata: metadata,
	}
	if runErr != nil {
		suggestion := failureSuggestion(command, exitCode, timedOut)
		result.Error = fmt.Errorf("command failed (exit %d): %s\n%s", exitCode, firstLine(output), suggestion)
	}
	return result, nil
}

// commandTimeout resolves the effective timeout for one command.
func commandTimeout(command string, args map[string]any) time.Duration {
	timeout := defaultCommandTimeout
	if seconds, ok := intArg(args, "timeout"); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	if isPackageManagerCommand(command) && timeout < packageManagerFloor {
		timeout = packageManagerFloor
	}
	if timeout > commandTimeoutCeiling {
		timeout = commandTimeoutCeiling
	}
	return timeout
}

func isPackageManagerCommand(command string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(command)), " ")
	for _, prefix := range packageManagerPrefixes {
		if strings.HasPrefix(normalized, prefix) || strings.Contains(normalized, "&& "+prefix) {
			return true
		}
	}
	return false
}

// failureSuggestion steers the model away from re-running a failing command
// verbatim.
func failureSuggestion(command string, exitCode int, timedOut bool) string {
	switch {
	case timedOut:
		return "The command did not finish in time. Try a narrower variant or run it as a managed server process if it is long-lived."
	case exitCode == 127:
		return "The executable was not found. Check the spelling or install it first."
	case exitCode == 126:
		return "The file is not executable. Check its permissions."
	default:
		return "Do not rerun the identical command; inspect the error output and fix the underlying cause or try a different command."
	}
}

func combineOutput(stdout, stderr string) string {
	out := strings.TrimSpace(stdout)
	errOut := strings.TrimSpace(stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func (t *runCommand) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "run_command",
		Description: "Execute a shell command in the workspace. Dangerous commands require user consent before they run.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command":     {Type: "string", Description: "Shell command to execute"},
				"working_dir": {Type: "string", Description: "Directory to run in, relative to the workspace root"},
				"timeout":     {Type: "integer", Description: "Timeout in seconds (capped at 1800)"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *runCommand) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "run_command", Version: "1.0.0", Category: "execution",
		Mutating: true, Dangerous: true,
	}
}
