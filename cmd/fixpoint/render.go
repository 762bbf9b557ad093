package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"fixpoint/internal/agent/domain"
	"fixpoint/internal/agent/ports"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// renderer turns engine events into terminal output and resolves consent
// requests interactively.
type renderer struct {
	consentStore ports.ConsentStore
	verbose      bool
	autoApprove  bool
	streaming    bool
}

func newRenderer(store ports.ConsentStore, verbose, autoApprove bool) *renderer {
	return &renderer{consentStore: store, verbose: verbose, autoApprove: autoApprove}
}

func (r *renderer) Render(ctx context.Context, event domain.AgentEvent) {
	switch e := event.(type) {
	case *domain.TaskStartEvent:
		fmt.Printf("%s %s %s\n", blue("▶"), bold(truncateLine(e.Request, 100)),
			gray(fmt.Sprintf("(%s, budget %d)", e.Complexity, e.Budget)))

	case *domain.IterationStartEvent:
		if r.verbose {
			fmt.Printf("%s\n", gray(fmt.Sprintf("── iteration %d/%d (%s)", e.Iteration, e.TotalIters, e.Status)))
		}

	case *domain.AssistantDeltaEvent:
		fmt.Print(e.Delta)
		r.streaming = true

	case *domain.ThinkCompleteEvent:
		if r.streaming {
			fmt.Println()
			r.streaming = false
		}

	case *domain.ToolCallStartEvent:
		fmt.Printf("%s %s %s\n", green("●"), e.ToolName, gray(describeArgs(e.Arguments)))

	case *domain.ToolCallCompleteEvent:
		if e.Error != nil {
			fmt.Printf("  %s %v\n", red("✗"), e.Error)
			return
		}
		if r.verbose && e.Result != "" {
			fmt.Printf("%s\n", gray(indent(truncateLine(e.Result, 600), "  ")))
		}

	case *domain.ConsentRequiredEvent:
		r.resolveConsent(ctx, e.Consent)

	case *domain.ConsentResolvedEvent:
		if e.Allowed {
			fmt.Printf("%s consent: %s\n", green("✓"), e.Decision)
		} else {
			fmt.Printf("%s consent: %s\n", red("✗"), e.Decision)
		}

	case *domain.VerificationEvent:
		r.renderVerification(e)

	case *domain.LoopWarningEvent:
		fmt.Printf("%s same error %d times in a row (%s)\n",
			yellow("⚠"), e.Consecutive, e.Severity)
		for _, s := range e.Suggestions {
			fmt.Printf("  %s\n", gray(s))
		}

	case *domain.CheckpointEvent:
		fmt.Printf("%s\n", gray(fmt.Sprintf("checkpoint saved: %s (iteration %d)", e.CheckpointID, e.Iteration)))

	case *domain.PromptRequestEvent:
		// The interactive prompter displays the question itself.

	case *domain.HumanGateEvent:
		marker := yellow("⚠")
		if e.Blocking {
			marker = red("⛔")
		}
		fmt.Printf("%s human sign-off needed: %s\n", marker, e.Reason)

	case *domain.ErrorEvent:
		fmt.Printf("%s %s error: %v\n", red("✗"), e.Phase, e.Error)

	case *domain.TaskCompleteEvent:
		r.renderCompletion(e)
	}
}

func (r *renderer) renderVerification(e *domain.VerificationEvent) {
	if e.Passed {
		label := "verification passed"
		if e.Quick {
			label = "syntax check passed"
		}
		fmt.Printf("%s %s\n", green("✓"), label)
		return
	}
	fmt.Printf("%s verification failed\n", red("✗"))
	for _, result := range e.Results {
		status := green("ok")
		if !result.Success {
			status = red("failed")
		}
		fmt.Printf("  %s %s %s\n", status, result.Kind, gray(result.Command))
		if !result.Success {
			for _, line := range headStrings(result.Errors, 5) {
				fmt.Printf("    %s\n", gray(line))
			}
		}
	}
}

func (r *renderer) renderCompletion(e *domain.TaskCompleteEvent) {
	if e.Answer != "" && !r.streaming {
		fmt.Printf("\n%s\n", e.Answer)
	}
	summary := fmt.Sprintf("%d iterations · %s · %d tokens",
		e.TotalIterations, formatDuration(e.Duration), e.TokensUsed)
	if e.UnusedIterations > 0 && e.StopReason == domain.StopFatalLLM {
		summary += fmt.Sprintf(" · %d budgeted iterations unused", e.UnusedIterations)
	}
	if e.Status == domain.StatusCompleted {
		fmt.Printf("\n%s Task completed %s\n", green("✓"), gray("("+summary+")"))
	} else {
		fmt.Printf("\n%s Task %s: %s %s\n", red("✗"), e.Status, e.StopReason, gray("("+summary+")"))
		for _, line := range e.RecentErrors {
			fmt.Printf("  %s\n", gray(line))
		}
	}
}

// resolveConsent asks the user and records the decision in the consent store,
// which the broker is polling.
func (r *renderer) resolveConsent(ctx context.Context, ev ports.ConsentEvent) {
	if r.autoApprove {
		_, _ = r.consentStore.Resolve(ctx, ev.ConsentID, ports.DecisionAllowOnce, "")
		return
	}

	fmt.Printf("\n%s %s wants to run a %s-risk command:\n", yellow("⚠"), bold("fixpoint"), ev.DangerLevel)
	fmt.Printf("  %s\n", cyan(ev.Command))
	if ev.Warning != "" {
		fmt.Printf("  %s\n", ev.Warning)
	}
	for _, c := range ev.Consequences {
		fmt.Printf("  - %s\n", c)
	}
	if len(ev.Alternatives) > 0 {
		fmt.Printf("  %s %s\n", gray("safer:"), gray(strings.Join(ev.Alternatives, "; ")))
	}
	if !ev.RollbackPossible {
		fmt.Printf("  %s\n", red("This cannot be rolled back."))
	}

	decision, alternative, err := promptConsentDecision(ev)
	if err != nil {
		fmt.Printf("%s no decision recorded: %v\n", yellow("⚠"), err)
		return
	}
	resolved, err := r.consentStore.Resolve(ctx, ev.ConsentID, decision, alternative)
	if err != nil {
		fmt.Printf("%s failed to record decision: %v\n", red("✗"), err)
		return
	}
	if !resolved {
		fmt.Printf("%s request already resolved or expired\n", yellow("⚠"))
	}
}

func describeArgs(args map[string]any) string {
	for _, key := range []string{"path", "command", "pattern", "url", "port"} {
		switch value := args[key].(type) {
		case string:
			if value != "" {
				return truncateLine(value, 80)
			}
		case float64:
			return strconv.Itoa(int(value))
		}
	}
	return ""
}

func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func headStrings(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
