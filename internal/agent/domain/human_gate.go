package domain

import (
	"fmt"
	"strings"
)

// GateDecision is the human-gate detector's verdict for one iteration.
type GateDecision struct {
	Triggered bool
	Blocking  bool
	Reason    string
}

// gateTriggers are phrases in model output or pending operations that require
// human sign-off in long-running mode before execution continues.
var gateTriggers = []struct {
	phrase string
	reason string
}{
	{"drop table", "destructive database schema change"},
	{"drop database", "destructive database schema change"},
	{"database migration", "database migration requires sign-off"},
	{"migrate the database", "database migration requires sign-off"},
	{"force push", "history rewrite on a shared branch"},
	{"push --force", "history rewrite on a shared branch"},
	{"deploy to production", "production deployment"},
	{"production deploy", "production deployment"},
	{"rotate credentials", "credential rotation"},
	{"delete the repository", "repository deletion"},
}

// blastRadiusThreshold is how many changed files count as a large blast
// radius in long-running mode.
const blastRadiusThreshold = 25

// DetectHumanGate inspects model output and the accumulated change set for
// triggers requiring human sign-off. Only active in long-running mode.
func DetectHumanGate(tc *TaskContext, modelOutput string, pendingCommands []string) GateDecision {
	if tc == nil || !tc.LongRunning {
		return GateDecision{}
	}

	haystack := strings.ToLower(modelOutput + "\n" + strings.Join(pendingCommands, "\n"))
	for _, trigger := range gateTriggers {
		if strings.Contains(haystack, trigger.phrase) {
			return GateDecision{Triggered: true, Blocking: true, Reason: trigger.reason}
		}
	}

	// A large change set needs a human go-ahead but is not destructive in
	// itself; the run pauses on a prompt instead of terminating.
	if changed := len(tc.ChangedFiles()); !tc.BlastRadiusGated && changed >= blastRadiusThreshold {
		return GateDecision{
			Triggered: true,
			Blocking:  false,
			Reason:    fmt.Sprintf("large blast radius: %d files changed without review", changed),
		}
	}

	return GateDecision{}
}
