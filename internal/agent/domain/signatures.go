package domain

import (
	"regexp"
	"strings"

	"fixpoint/internal/agent/ports"
)

// Pattern tags produced by error normalization. Textually different but
// semantically identical errors collapse onto the same tag so that signature
// comparison is stable across retries.
const (
	PatternModuleNotFound = "module_not_found"
	PatternSyntaxError    = "syntax_error"
	PatternTypeError      = "type_error"
	PatternImportError    = "import_error"
	PatternUndefined      = "undefined_symbol"
	PatternTestFailure    = "test_failure"
	PatternGeneric        = "generic"
)

// Normalizer reduces a raw error line to (file, pattern tag, normalized text).
// It is a strategy: heuristic by nature, swappable in tests.
type Normalizer func(line string) (file string, pattern string)

var (
	// file.ts(12,5) / file.ts:12:5 / file.go:12 position suffixes
	positionPattern = regexp.MustCompile(`[:(]\d+(?:[:,]\d+)?\)?`)
	// leading "path/to/file.ext" token with a source extension
	filePattern    = regexp.MustCompile(`(?:^|\s)([\w./\\-]+\.(?:ts|tsx|js|jsx|mjs|go|py|rs|rb|java|c|cc|cpp|h|hpp))\b`)
	numberPattern  = regexp.MustCompile(`\b\d+\b`)
	hexAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// DefaultNormalizer strips line/column positions and collapses known error
// categories to stable tokens.
func DefaultNormalizer(line string) (string, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", PatternGeneric
	}

	file := ""
	if m := filePattern.FindStringSubmatch(trimmed); len(m) > 1 {
		file = m[1]
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "cannot find module") ||
		strings.Contains(lower, "module not found") ||
		strings.Contains(lower, "no module named") ||
		strings.Contains(lower, "cannot find package"):
		return file, PatternModuleNotFound
	case strings.Contains(lower, "syntax error") ||
		strings.Contains(lower, "syntaxerror") ||
		strings.Contains(lower, "unexpected token") ||
		strings.Contains(lower, "expected ';'") ||
		strings.Contains(lower, "unexpected eof"):
		return file, PatternSyntaxError
	case strings.Contains(lower, "type error") ||
		strings.Contains(lower, "typeerror") ||
		strings.Contains(lower, "is not assignable to") ||
		strings.Contains(lower, "incompatible type") ||
		strings.Contains(lower, "mismatched types"):
		return file, PatternTypeError
	case strings.Contains(lower, "importerror") ||
		strings.Contains(lower, "import cycle") ||
		strings.Contains(lower, "imported and not used") ||
		strings.Contains(lower, "import error"):
		return file, PatternImportError
	case strings.Contains(lower, "undefined:") ||
		strings.Contains(lower, "is not defined") ||
		strings.Contains(lower, "undeclared name") ||
		strings.Contains(lower, "nameerror"):
		return file, PatternUndefined
	case strings.Contains(lower, "--- fail") ||
		strings.Contains(lower, "assertionerror") ||
		strings.Contains(lower, "test failed") ||
		strings.Contains(lower, "expect(") && strings.Contains(lower, "received"):
		return file, PatternTestFailure
	}

	// Unrecognized category: keep the text itself, scrubbed of positions and
	// other volatile fragments, as the pattern.
	scrubbed := positionPattern.ReplaceAllString(trimmed, "")
	scrubbed = hexAddrPattern.ReplaceAllString(scrubbed, "<addr>")
	scrubbed = numberPattern.ReplaceAllString(scrubbed, "<n>")
	scrubbed = strings.Join(strings.Fields(scrubbed), " ")
	if len(scrubbed) > 160 {
		scrubbed = scrubbed[:160]
	}
	return file, scrubbed
}

// ExtractSignatures converts the error lines of failed verification results
// into normalized signatures for the given iteration.
func ExtractSignatures(results []ports.VerificationResult, iteration int) []ErrorSignature {
	return ExtractSignaturesWith(DefaultNormalizer, results, iteration)
}

// ExtractSignaturesWith applies a custom normalizer. Duplicate signatures from
// the same pass are collapsed.
func ExtractSignaturesWith(normalize Normalizer, results []ports.VerificationResult, iteration int) []ErrorSignature {
	var out []ErrorSignature
	for _, result := range results {
		if result.Success {
			continue
		}
		for _, line := range result.Errors {
			file, pattern := normalize(line)
			sig := ErrorSignature{
				Kind:      result.Kind,
				File:      file,
				Pattern:   pattern,
				Iteration: iteration,
			}
			duplicate := false
			for _, existing := range out {
				if existing.Matches(sig) {
					duplicate = true
					break
				}
			}
			if !duplicate {
				out = append(out, sig)
			}
		}
	}
	return out
}
