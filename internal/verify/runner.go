package verify

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/shared/logging"
)

const (
	checkTimeout   = 300 * time.Second
	maxCheckOutput = 32 * 1024
	maxErrorLines  = 20
)

// CommandRunner executes one check command in a directory and returns its
// combined output plus success. Stubable in tests.
type CommandRunner func(ctx context.Context, workspace, command string) (string, bool)

func defaultRunner(ctx context.Context, workspace, command string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	return string(out), err == nil
}

// Verifier implements ports.Verifier on top of a CommandRunner.
type Verifier struct {
	runner CommandRunner
	logger logging.Logger
}

var _ ports.Verifier = (*Verifier)(nil)

// New constructs a Verifier with the real command runner.
func New() *Verifier {
	return &Verifier{
		runner: defaultRunner,
		logger: logging.NewEngineLogger("verify"),
	}
}

// NewWithRunner injects the runner, for tests.
func NewWithRunner(runner CommandRunner) *Verifier {
	v := New()
	if runner != nil {
		v.runner = runner
	}
	return v
}

// Verify runs the detected checks in fixed order: typecheck, lint, tests,
// build. A typecheck failure short-circuits everything after it, since later
// checks would only echo the same breakage.
func (v *Verifier) Verify(ctx context.Context, workspace string, commands ports.ProjectCommands, runTests bool) []ports.VerificationResult {
	var results []ports.VerificationResult

	if commands.Typecheck != "" {
		result := v.runCheck(ctx, workspace, ports.VerifyTypecheck, commands.Typecheck)
		results = append(results, result)
		if !result.Success {
			v.logger.Info("Typecheck failed; skipping remaining checks")
			return results
		}
	}
	if commands.Lint != "" {
		results = append(results, v.runCheck(ctx, workspace, ports.VerifyLint, commands.Lint))
	}
	if runTests && commands.Test != "" {
		results = append(results, v.runCheck(ctx, workspace, ports.VerifyTest, commands.Test))
	}
	if commands.Build != "" {
		results = append(results, v.runCheck(ctx, workspace, ports.VerifyBuild, commands.Build))
	}
	return results
}

func (v *Verifier) runCheck(ctx context.Context, workspace string, kind ports.VerificationKind, command string) ports.VerificationResult {
	start := time.Now()
	output, success := v.runner(ctx, workspace, command)
	v.logger.Info("%s (%s) finished in %v: success=%t", kind, command, time.Since(start).Round(time.Millisecond), success)

	if len(output) > maxCheckOutput {
		output = output[:maxCheckOutput] + "\n... (output truncated)"
	}

	result := ports.VerificationResult{
		Kind:    kind,
		Command: command,
		Success: success,
		Output:  output,
	}
	if !success {
		result.Errors = extractErrorLines(output)
	}
	return result
}

// extractErrorLines keeps the lines most likely to describe the failure.
func extractErrorLines(output string) []string {
	var errorLines, allLines []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		allLines = append(allLines, trimmed)
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "error") ||
			strings.Contains(lower, "fail") ||
			strings.Contains(lower, "cannot") ||
			strings.Contains(lower, "undefined") ||
			strings.Contains(lower, "expected") {
			errorLines = append(errorLines, trimmed)
		}
	}
	if len(errorLines) == 0 {
		errorLines = allLines
	}
	if len(errorLines) > maxErrorLines {
		errorLines = errorLines[:maxErrorLines]
	}
	return errorLines
}
