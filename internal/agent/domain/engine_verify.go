package domain

import (
	"context"
	"strings"

	"fixpoint/internal/agent/ports"
)

// verifyIteration runs the post-mutation checks for one iteration and reports
// whether they all passed. On failure it records the error signatures and the
// failed approach, then appends the corrective guidance message that steers
// the next iteration.
func (e *Engine) verifyIteration(ctx context.Context, tc *TaskContext, services Services, activity iterationActivity) bool {
	if services.Verifier == nil {
		return true
	}
	tc.Status = StatusVerifying

	var results []ports.VerificationResult
	quick := false

	if tc.Complexity == ComplexitySimple {
		// Simple tasks get a syntax-only fast path; a clean pass skips the
		// full check suite entirely.
		quick = true
		ok, output := services.Verifier.QuickValidate(ctx, tc.Workspace, activity.changedFiles)
		if ok {
			e.emitEvent(&VerificationEvent{
				BaseEvent: e.newBaseEvent(tc),
				Iteration: tc.Iterations,
				Passed:    true,
				Quick:     true,
			})
			e.logger.Info("Quick validation passed for %d file(s)", len(activity.changedFiles))
			return true
		}
		results = []ports.VerificationResult{{
			Kind:    ports.VerifySyntax,
			Success: false,
			Output:  output,
			Errors:  splitErrorLines(output),
		}}
	} else {
		commands := services.Verifier.DetectProjectCommands(ctx, tc.Workspace)
		if commands.IsEmpty() {
			e.logger.Debug("No project check commands detected; skipping verification")
			return true
		}
		runTests := tc.Complexity != ComplexityMedium || len(activity.changedFiles) > 1
		results = services.Verifier.Verify(ctx, tc.Workspace, commands, runTests)
	}

	tc.VerificationHistory = append(tc.VerificationHistory, results...)

	passed := true
	for _, result := range results {
		if !result.Success {
			passed = false
			break
		}
	}

	e.emitEvent(&VerificationEvent{
		BaseEvent: e.newBaseEvent(tc),
		Iteration: tc.Iterations,
		Results:   results,
		Passed:    passed,
		Quick:     quick,
	})
	if e.metrics != nil {
		e.metrics.IncVerification(passed)
	}
	if passed {
		e.logger.Info("Verification passed (%d check(s))", len(results))
		return true
	}

	signatures := ExtractSignatures(results, tc.Iterations)
	tc.ErrorSignatures = append(tc.ErrorSignatures, signatures...)

	report := DetectLoop(tc.ErrorSignatures)
	if report.IsLooping {
		e.logger.Warn("Repeating failure detected: severity=%s consecutive=%d", report.Severity, report.Consecutive)
		e.emitEvent(&LoopWarningEvent{
			BaseEvent:   e.newBaseEvent(tc),
			Iteration:   tc.Iterations,
			Severity:    report.Severity,
			Consecutive: report.Consecutive,
			Signature:   report.Repeated,
			Suggestions: report.Suggestions,
		})
		if e.metrics != nil {
			e.metrics.IncLoopWarning(string(report.Severity))
		}
	}

	tc.FailedApproaches = append(tc.FailedApproaches, FailedApproach{
		Iteration:    tc.Iterations,
		Description:  describeToolCalls(activity.invocations),
		FilesTouched: activity.changedFiles,
		ErrorSummary: summarizeErrors(results),
	})

	guidance := buildVerificationGuidance(errorLinesOf(results), report, tc.FailedApproaches)
	tc.Messages = append(tc.Messages, ports.Message{Role: "user", Content: guidance})

	e.logger.Info("Verification failed; corrective guidance appended")
	return false
}

func errorLinesOf(results []ports.VerificationResult) []ErrorLines {
	out := make([]ErrorLines, 0, len(results))
	for _, result := range results {
		if result.Success || len(result.Errors) == 0 {
			continue
		}
		out = append(out, ErrorLines{Kind: string(result.Kind), Lines: result.Errors})
	}
	return out
}

// splitErrorLines keeps the non-empty lines of raw check output.
func splitErrorLines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func summarizeErrors(results []ports.VerificationResult) string {
	for _, result := range results {
		if !result.Success && len(result.Errors) > 0 {
			return result.Errors[0]
		}
	}
	for _, result := range results {
		if !result.Success {
			return truncateForPrompt(result.Output, 120)
		}
	}
	return "verification failed"
}
