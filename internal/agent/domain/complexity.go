package domain

import "strings"

var complexKeywords = []string{
	"refactor", "migrate", "migration", "rewrite", "redesign", "across",
	"entire", "all files", "every file", "architecture", "restructure",
}

var mediumKeywords = []string{
	"implement", "add", "create", "build", "feature", "endpoint",
	"integrate", "update", "replace", "write tests",
}

var simpleKeywords = []string{
	"typo", "rename", "comment", "small", "minor", "one line", "one-line",
	"quick fix", "bump",
}

// EstimateComplexity sizes the iteration budget from the request text. The
// enterprise tier is never inferred; callers opt into it explicitly for
// long-running work.
func EstimateComplexity(request string) ComplexityTier {
	lower := strings.ToLower(request)

	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return ComplexityComplex
		}
	}
	for _, kw := range simpleKeywords {
		if strings.Contains(lower, kw) {
			return ComplexitySimple
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(lower, kw) {
			return ComplexityMedium
		}
	}

	// Short requests tend to be small asks.
	if len(strings.Fields(lower)) <= 6 {
		return ComplexitySimple
	}
	return ComplexityMedium
}

var actionVerbs = []string{
	"fix", "add", "create", "write", "implement", "update", "change",
	"delete", "remove", "rename", "refactor", "install", "run", "build",
	"deploy", "start", "stop", "restart", "migrate", "move", "replace",
	"set up", "setup", "configure", "make",
}

var questionMarkers = []string{
	"what", "why", "how does", "how do", "where", "when", "which",
	"explain", "describe", "tell me", "show me", "is there", "are there",
	"does", "can you explain", "?",
}

// IsActionRequest classifies a request as requiring tool calls (an action)
// versus a pure question that can be answered from context alone. Used when
// an iteration produced no file change and no command: action requests get a
// corrective nudge, questions terminate as info-only tasks.
func IsActionRequest(request string) bool {
	lower := strings.ToLower(strings.TrimSpace(request))
	if lower == "" {
		return false
	}

	actionScore, questionScore := 0, 0
	for _, verb := range actionVerbs {
		if strings.HasPrefix(lower, verb+" ") || strings.Contains(lower, " "+verb+" ") {
			actionScore++
		}
	}
	for _, marker := range questionMarkers {
		if marker == "?" {
			if strings.HasSuffix(lower, "?") {
				questionScore += 2
			}
			continue
		}
		if strings.HasPrefix(lower, marker) {
			questionScore += 2
		} else if strings.Contains(lower, marker) {
			questionScore++
		}
	}

	return actionScore > questionScore
}
