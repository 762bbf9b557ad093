package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// QuickValidate performs a syntax-only check of the given files, used for
// low-complexity tasks where a full check suite would dominate the task's
// runtime. Files with no known syntax checker pass by default.
func (v *Verifier) QuickValidate(ctx context.Context, workspace string, files []string) (bool, string) {
	var failures []string
	for _, file := range files {
		command, ok := syntaxCommand(file)
		if !ok {
			continue
		}
		output, success := v.runner(ctx, workspace, command)
		if !success {
			failures = append(failures, fmt.Sprintf("%s: %s", file, strings.TrimSpace(output)))
		}
	}
	if len(failures) == 0 {
		return true, ""
	}
	return false, strings.Join(failures, "\n")
}

// syntaxCommand maps a file to its cheapest syntax check.
func syntaxCommand(file string) (string, bool) {
	quoted := shellQuote(file)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".go":
		return "gofmt -e " + quoted + " > /dev/null", true
	case ".py":
		return "python -m py_compile " + quoted, true
	case ".js", ".mjs", ".cjs":
		return "node --check " + quoted, true
	case ".ts", ".tsx":
		return "npx tsc --noEmit " + quoted, true
	case ".json":
		return "python -m json.tool " + quoted + " > /dev/null", true
	case ".sh", ".bash":
		return "bash -n " + quoted, true
	case ".yaml", ".yml":
		return "python -c 'import sys,yaml; yaml.safe_load(open(sys.argv[1]))' " + quoted, true
	default:
		return "", false
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
