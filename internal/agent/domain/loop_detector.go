package domain

// LoopSeverity grades how stuck a task is.
type LoopSeverity string

const (
	LoopNone     LoopSeverity = "none"
	LoopWarning  LoopSeverity = "warning"
	LoopCritical LoopSeverity = "critical"
)

// Loop thresholds over the consecutive-same-error counter.
const (
	loopWarningThreshold  = 2
	loopCriticalThreshold = 3
	// LoopCeiling is the consecutive-identical-error count at which a task
	// is unrecoverable and terminates before the next inference call.
	LoopCeiling = 5
)

// loopWindow bounds how far back recurring-group analysis looks.
const loopWindow = 10

// LoopReport is the detector's verdict for the current iteration.
type LoopReport struct {
	IsLooping   bool
	Severity    LoopSeverity
	Consecutive int
	Repeated    *ErrorSignature
	Suggestions []string
}

// DetectLoop examines the accumulated signature history and reports whether
// the task is repeating the same failure. It is pure: identical history
// always yields an identical report.
//
// The consecutive counter is derived by walking iterations backwards from the
// most recent one: it counts how many successive iteration pairs share at
// least one matching signature.
func DetectLoop(history []ErrorSignature) LoopReport {
	if len(history) == 0 {
		return LoopReport{Severity: LoopNone}
	}

	byIteration := groupByIteration(history)
	latest := history[len(history)-1].Iteration

	consecutive := 0
	var repeated *ErrorSignature
	for iter := latest; iter > 0; iter-- {
		current, prior := byIteration[iter], byIteration[iter-1]
		match := firstMatch(current, prior)
		if match == nil {
			break
		}
		consecutive++
		if repeated == nil {
			repeated = match
		}
	}
	if consecutive > 0 {
		// The run of N matching pairs means the error appeared N+1 times.
		consecutive++
	}

	recurring := hasRecurringGroup(tail(history, loopWindow))

	report := LoopReport{
		Consecutive: consecutive,
		Repeated:    repeated,
		Severity:    LoopNone,
	}

	switch {
	case consecutive >= loopCriticalThreshold:
		report.IsLooping = true
		report.Severity = LoopCritical
		report.Suggestions = []string{
			"Stop editing the same file; the repeated fix is not working",
			"Re-read the file before retrying to confirm its actual state",
			"Consider that the error's real cause is in a different location",
			"Consider a full rewrite of the failing section instead of incremental patches",
		}
	case consecutive >= loopWarningThreshold || recurring:
		report.IsLooping = true
		report.Severity = LoopWarning
		report.Suggestions = []string{
			"Re-read the failing file before the next change",
			"Verify you are fixing the cause, not a symptom",
		}
	}

	if report.IsLooping && repeated != nil {
		report.Suggestions = append(report.Suggestions, patternHint(repeated.Pattern)...)
	}

	return report
}

func groupByIteration(history []ErrorSignature) map[int][]ErrorSignature {
	grouped := make(map[int][]ErrorSignature)
	for _, sig := range history {
		grouped[sig.Iteration] = append(grouped[sig.Iteration], sig)
	}
	return grouped
}

func firstMatch(current, prior []ErrorSignature) *ErrorSignature {
	for _, sig := range current {
		for _, old := range prior {
			if sig.Matches(old) {
				match := sig
				return &match
			}
		}
	}
	return nil
}

// hasRecurringGroup reports whether any (kind, file, pattern) group occurs at
// least twice in the window.
func hasRecurringGroup(window []ErrorSignature) bool {
	for i, sig := range window {
		for _, other := range window[i+1:] {
			if sig.Matches(other) && sig.Iteration != other.Iteration {
				return true
			}
		}
	}
	return false
}

func tail(history []ErrorSignature, n int) []ErrorSignature {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func patternHint(pattern string) []string {
	switch pattern {
	case PatternSyntaxError:
		return []string{"Syntax errors often come from an earlier unbalanced brace or quote; inspect the lines above the reported position"}
	case PatternModuleNotFound:
		return []string{"A missing module usually needs an install step or a corrected import path, not another code edit"}
	case PatternTypeError:
		return []string{"Check the declaration site of the mismatched type; the annotation may be wrong rather than the usage"}
	case PatternImportError:
		return []string{"Inspect the import graph; removing an unused import or breaking a cycle may be required"}
	default:
		return nil
	}
}
