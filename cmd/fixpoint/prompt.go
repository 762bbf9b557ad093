package main

import (
	"context"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"

	"fixpoint/internal/agent/ports"
)

// interactivePrompter implements ports.UserPrompter on top of promptui.
type interactivePrompter struct{}

func newInteractivePrompter() ports.UserPrompter {
	return &interactivePrompter{}
}

func (p *interactivePrompter) Ask(ctx context.Context, question string, timeout time.Duration) (string, error) {
	type answer struct {
		text string
		err  error
	}
	result := make(chan answer, 1)

	go func() {
		prompt := promptui.Prompt{Label: question}
		text, err := prompt.Run()
		result <- answer{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("no response within %v", timeout)
	case a := <-result:
		if a.err != nil {
			return "", fmt.Errorf("prompt failed: %w", a.err)
		}
		return a.text, nil
	}
}

// promptConsentDecision walks the user through the consent choices for one
// dangerous command.
func promptConsentDecision(ev ports.ConsentEvent) (ports.ConsentDecision, string, error) {
	choices := []struct {
		label    string
		decision ports.ConsentDecision
	}{
		{"Allow once", ports.DecisionAllowOnce},
		{"Always allow this exact command", ports.DecisionAllowExact},
		{"Always allow this command type", ports.DecisionAllowType},
		{"Run a different command instead", ports.DecisionAlternative},
		{"Deny", ports.DecisionDeny},
	}

	items := make([]string, len(choices))
	for i, c := range choices {
		items[i] = c.label
	}

	sel := promptui.Select{
		Label: "Decision",
		Items: items,
	}
	index, _, err := sel.Run()
	if err != nil {
		return ports.DecisionDeny, "", err
	}

	decision := choices[index].decision
	if decision != ports.DecisionAlternative {
		return decision, "", nil
	}

	prompt := promptui.Prompt{Label: "Alternative command"}
	alternative, err := prompt.Run()
	if err != nil {
		return ports.DecisionDeny, "", err
	}
	return ports.DecisionAlternative, alternative, nil
}
