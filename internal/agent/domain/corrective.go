package domain

import (
	"fmt"
	"strings"
)

const maxErrorLinesInGuidance = 8

// buildNoToolCallNudge demands an actual tool call when an action request
// produced neither a file change nor a command.
func buildNoToolCallNudge(request string) string {
	return fmt.Sprintf(
		"The request %q requires changes to the workspace, but your last response made no tool call. "+
			"Do not describe what you would do - call a tool now (read_file, edit_file, write_file or run_command) to make progress.",
		truncateForPrompt(request, 200),
	)
}

// buildUnverifiedClaimNudge rejects a completion claim made while the last
// verification round is still failing.
func buildUnverifiedClaimNudge(recentErrors []string) string {
	var b strings.Builder
	b.WriteString("The checks have not passed since the last failure, so the task is not done. ")
	b.WriteString("Do not declare success - fix the remaining errors with tool calls:\n")
	for _, line := range recentErrors {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildGateQuestion phrases a non-blocking human gate as the question put to
// the user before execution continues.
func buildGateQuestion(reason string) string {
	return fmt.Sprintf(
		"Human sign-off needed before continuing: %s. Reply with how to proceed, or tell me to stop.",
		reason,
	)
}

// buildVerificationGuidance turns a failed verification round plus the loop
// report into the corrective message appended before the next iteration.
func buildVerificationGuidance(results []ErrorLines, report LoopReport, approaches []FailedApproach) string {
	var b strings.Builder
	b.WriteString("Verification failed. Fix these errors before anything else:\n")
	count := 0
	for _, result := range results {
		for _, line := range result.Lines {
			if count >= maxErrorLinesInGuidance {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", result.Kind, line)
			count++
		}
	}

	switch report.Severity {
	case LoopCritical:
		b.WriteString("\nYou have now hit the same error ")
		fmt.Fprintf(&b, "%d times in a row. Change strategy:\n", report.Consecutive)
	case LoopWarning:
		b.WriteString("\nThis error repeats. Before retrying:\n")
	}
	for _, s := range report.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	if len(approaches) > 0 {
		b.WriteString("\nApproaches that already failed (do not repeat them):\n")
		start := len(approaches) - 3
		if start < 0 {
			start = 0
		}
		for _, approach := range approaches[start:] {
			fmt.Fprintf(&b, "- iteration %d: %s (%s)\n",
				approach.Iteration, approach.Description, truncateForPrompt(approach.ErrorSummary, 120))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// ErrorLines pairs a verification kind with its extracted error lines, for
// guidance rendering.
type ErrorLines struct {
	Kind  string
	Lines []string
}

// describeToolCalls produces the human-readable "what was attempted" summary
// stored in a FailedApproach, derived from the iteration's tool calls.
func describeToolCalls(calls []toolInvocation) string {
	if len(calls) == 0 {
		return "no tool calls"
	}
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		target := ""
		if path, ok := call.Arguments["path"].(string); ok {
			target = " " + path
		} else if command, ok := call.Arguments["command"].(string); ok {
			target = " `" + truncateForPrompt(command, 60) + "`"
		}
		parts = append(parts, call.Name+target)
	}
	return strings.Join(parts, ", ")
}

func truncateForPrompt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
