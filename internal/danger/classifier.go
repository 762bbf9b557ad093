package danger

import (
	"strings"

	"fixpoint/internal/agent/ports"
)

// Classification is the verdict for one command string.
type Classification struct {
	Dangerous bool
	Spec      *CommandSpec
	Risk      ports.RiskLevel
	// Matched is the registry pattern that decided the classification.
	Matched string
}

// Classify matches a command against the static registry. Precedence is
// exact match, then longest matching prefix, then leading-token match, so a
// command never classifies differently between runs. Commands chained with
// && or ; classify as the highest-risk segment.
func Classify(command string) Classification {
	worst := Classification{Risk: ports.RiskLow}
	for _, segment := range splitSegments(command) {
		c := classifySegment(segment)
		if riskRank(c.Risk) > riskRank(worst.Risk) {
			worst = c
		}
	}
	return worst
}

func classifySegment(segment string) Classification {
	normalized := normalize(segment)
	if normalized == "" {
		return Classification{Risk: ports.RiskLow}
	}

	// Exact match wins outright.
	for i := range specs {
		if normalized == specs[i].Pattern {
			return matched(&specs[i])
		}
	}

	// Longest prefix match. The prefix must end on a token boundary so
	// "rm -rf" never matches "rm -rfoo".
	var best *CommandSpec
	bestLen := -1
	for i := range specs {
		p := specs[i].Pattern
		if len(p) > bestLen && strings.HasPrefix(normalized, p+" ") {
			best = &specs[i]
			bestLen = len(p)
		}
	}
	if best != nil {
		return matched(best)
	}

	// Leading token match for single-word patterns.
	leading := strings.Fields(normalized)[0]
	for i := range specs {
		if specs[i].Pattern == leading {
			return matched(&specs[i])
		}
	}

	// SQL-ish patterns can appear anywhere in a client invocation.
	for i := range specs {
		p := specs[i].Pattern
		if strings.Contains(p, " ") && strings.Contains(normalized, p) {
			return matched(&specs[i])
		}
	}

	return Classification{Risk: ports.RiskLow}
}

func matched(spec *CommandSpec) Classification {
	return Classification{
		Dangerous: true,
		Spec:      spec,
		Risk:      spec.Risk,
		Matched:   spec.Pattern,
	}
}

// normalize lowercases and collapses whitespace, and strips a leading sudo so
// elevation does not hide the underlying command.
func normalize(command string) string {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) > 0 && fields[0] == "sudo" {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// splitSegments breaks a compound command on shell separators. Quoting is not
// parsed; erring toward more segments only ever raises the classification.
func splitSegments(command string) []string {
	replaced := strings.NewReplacer("&&", "\n", "||", "\n", ";", "\n", "|", "\n").Replace(command)
	var out []string
	for _, part := range strings.Split(replaced, "\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = append(out, command)
	}
	return out
}

func riskRank(risk ports.RiskLevel) int {
	switch risk {
	case ports.RiskCritical:
		return 3
	case ports.RiskHigh:
		return 2
	case ports.RiskMedium:
		return 1
	default:
		return 0
	}
}

// TargetOf extracts the most likely filesystem target of a dangerous command,
// used to scope the pre-execution backup. Flags are skipped.
func TargetOf(command string) string {
	fields := strings.Fields(command)
	if len(fields) > 0 && fields[0] == "sudo" {
		fields = fields[1:]
	}
	for i := len(fields) - 1; i >= 1; i-- {
		token := fields[i]
		if strings.HasPrefix(token, "-") {
			continue
		}
		return token
	}
	return ""
}
